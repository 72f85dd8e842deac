package main

import (
	"fmt"

	"github.com/angusmcleod/mastodon/models"
	"gorm.io/gorm"
)

type CreateInstanceCmd struct {
	Domain      string `required:"" help:"domain the instance will serve"`
	Title       string `help:"instance title, defaults to the domain"`
	Description string `help:"instance description"`
	AdminEmail  string `required:"" help:"email address for the instance admin account"`
}

func (c *CreateInstanceCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	title := c.Title
	if title == "" {
		title = c.Domain
	}
	instance, err := models.NewInstances(db).Create(c.Domain, title, c.Description, c.AdminEmail)
	if err != nil {
		return err
	}
	fmt.Printf("instance %s created, admin %s\n", instance.Domain, c.AdminEmail)
	return nil
}
