package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angusmcleod/mastodon/activitypub"
	"github.com/angusmcleod/mastodon/internal/cache"
	"github.com/angusmcleod/mastodon/internal/httpx"
	"github.com/angusmcleod/mastodon/moderation"
	"github.com/angusmcleod/mastodon/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/group"
	"golang.org/x/exp/slog"
	"gorm.io/gorm"
)

type ServeCmd struct {
	Addr string `help:"address to listen on"`
}

func (s *ServeCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if ctx.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remoteCache, err := cache.New(sigCtx, ctx.Settings.Redis.URL)
	if err != nil {
		return err
	}

	modelsEnv := &models.Env{DB: db, Logger: logger}
	apEnv := &activitypub.Env{
		Env:          modelsEnv,
		Cache:        remoteCache,
		ClockSkew:    ctx.Settings.Federation.ClockSkew,
		FetchTimeout: ctx.Settings.Federation.FetchTimeout,
	}
	modEnv := &moderation.Env{Env: modelsEnv}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	inbox := httpx.HandlerFunc(func(*http.Request) *activitypub.Env { return apEnv }, activitypub.InboxCreate)
	r.Post("/inbox", inbox)
	r.Post("/users/{username}/inbox", inbox)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Post("/domain_blocks", httpx.HandlerFunc(func(*http.Request) *moderation.Env { return modEnv }, moderation.DomainBlocksCreate))
	})

	addr := s.Addr
	if addr == "" {
		addr = ctx.Settings.Server.Addr
	}
	svr := &http.Server{
		Addr:         addr,
		Handler:      r,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	g := group.New(sigCtx)
	g.Add(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return svr.Shutdown(shutdownCtx)
	})
	g.Add(func(context.Context) error {
		logger.Info("listening", "addr", svr.Addr)
		if err := svr.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return g.Wait()
}
