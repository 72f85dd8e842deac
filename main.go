package main

import (
	"github.com/alecthomas/kong"
	"github.com/angusmcleod/mastodon/internal/config"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Context struct {
	Debug     bool
	Dialector gorm.Dialector
	Settings  *config.Config

	gorm.Config
}

var cli struct {
	Debug bool   `help:"Enable debug mode."`
	DSN   string `help:"Data source name." env:"MASTODON_DSN"`

	AutoMigrate    AutoMigrateCmd    `cmd:"" help:"Auto-migrate the database."`
	CreateAccount  CreateAccountCmd  `cmd:"" help:"Create a new account."`
	CreateInstance CreateInstanceCmd `cmd:"" help:"Create a new instance."`
	BlockDomain    BlockDomainCmd    `cmd:"" help:"Block a domain, severing all relationships with it."`
	Serve          ServeCmd          `cmd:"" help:"Serve the federation endpoints."`
}

func main() {
	// pick up MASTODON_* variables from .env if one exists
	godotenv.Load()

	ctx := kong.Parse(&cli)
	settings, err := config.Load()
	ctx.FatalIfErrorf(err)

	dsn := cli.DSN
	if dsn == "" {
		dsn = settings.Database.DSN
	}
	logLevel := logger.Warn
	if cli.Debug {
		logLevel = logger.Info
	}
	err = ctx.Run(&Context{
		Debug:     cli.Debug,
		Dialector: newDialector(dsn),
		Settings:  settings,
		Config: gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logLevel),
		},
	})
	ctx.FatalIfErrorf(err)
}
