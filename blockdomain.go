package main

import (
	"context"
	"fmt"
	"os"

	"github.com/angusmcleod/mastodon/moderation"
	"github.com/angusmcleod/mastodon/models"
	"golang.org/x/exp/slog"
	"gorm.io/gorm"
)

type BlockDomainCmd struct {
	Domain string `required:"" help:"domain to block"`
}

func (c *BlockDomainCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}

	env := &moderation.Env{
		Env: &models.Env{
			DB:     db,
			Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		},
	}
	event, err := env.BlockDomain(context.Background(), c.Domain)
	if err != nil {
		return err
	}
	fmt.Printf("severance event %d recorded for %s\n", event.ID, c.Domain)
	return nil
}
