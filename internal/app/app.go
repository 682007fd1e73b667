package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/trunov/imageconv/internal/cache"
	"github.com/trunov/imageconv/internal/config"
	"github.com/trunov/imageconv/internal/converter"
	"github.com/trunov/imageconv/internal/redisholder"
	"github.com/trunov/imageconv/internal/transport/handler"
	"github.com/trunov/imageconv/internal/transport/router"
	use_case "github.com/trunov/imageconv/internal/use-case"
)

type App struct {
	HttpServer *http.Server
}

// New wires the engine, the optional result cache and the HTTP layer. ctx
// bounds the Redis health loop, which closes the client when ctx ends.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conv := converter.New(cfg.Conversion)

	a := &App{}
	var rc use_case.ResultCache
	if cfg.CacheEnabled() {
		holder, err := redisholder.Build(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		rc = cache.NewCache(cfg.Cache.Namespace, cfg.Cache.TTL, holder)
		log.Printf("result cache enabled (namespace=%s ttl=%ds)", cfg.Cache.Namespace, cfg.Cache.TTL)
	}

	uc := use_case.New(conv, rc, cfg.Batch.Workers)

	h := handler.New(uc, cfg)
	r := router.NewRouter(h)

	a.HttpServer = &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return a, nil
}

func (a *App) Run() error {
	log.Printf("starting server on %s", a.HttpServer.Addr)
	if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.HttpServer.Shutdown(ctx)
}
