package main

import (
	"errors"
	"strings"

	"github.com/angusmcleod/mastodon/models"
	"gorm.io/gorm"
)

type CreateAccountCmd struct {
	Email    string `required:"" help:"email address of the user to create"`
	Password string `required:"" help:"password of the user to create"`
	Admin    bool   `help:"promote the account to instance admin"`
}

func (c *CreateAccountCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	username, domain, found := strings.Cut(c.Email, "@")
	if !found {
		return errors.New("invalid email address")
	}

	instance, err := models.NewInstances(db).FindByDomain(domain)
	if err != nil {
		return err
	}
	account, err := models.NewAccounts(db).Create(instance, username, c.Email, c.Password)
	if err != nil {
		return err
	}
	if c.Admin {
		return db.Model(instance).Update("admin_id", account.ID).Error
	}
	return nil
}
