package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/client"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/store/jsonstore"
	"github.com/Makepad-fr/tada/internal/store/memstore"
	"github.com/Makepad-fr/tada/internal/store/natskv"
	"github.com/Makepad-fr/tada/internal/store/sqlitestore"
	"github.com/Makepad-fr/tada/internal/todo"
)

const (
	defaultSQLitePath = "tada.db"
	seedCount         = 6
)

// open returns the ledger for this invocation: the remote client when a
// server URL is configured, otherwise a Service over the configured store.
func (a *App) open(ctx context.Context) (todo.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	if url := a.cfg.Remote.URL; url != "" {
		token := ""
		tok, err := auth.Load()
		if err != nil {
			return nil, err
		}
		if tok != nil {
			if tok.Expired(time.Now()) {
				a.logger.Warn("Token has expired", slog.Time("expires_at", *tok.ExpiresAt))
			}
			token = tok.Value
		}
		a.logger.Debug("Using remote ledger", slog.String("url", url))
		a.ledger = client.New(url, token, a.cfg.Remote.Timeout)
		return a.ledger, nil
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	svc := todo.New(store, todo.WithLogger(a.logger), todo.WithMetrics(a.metrics))
	if a.cfg.Store.Seed {
		n, err := todo.Seed(ctx, svc, seedCount)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			a.logger.Info("Seeded store", slog.Int("items", n))
		}
	}
	a.ledger = svc
	return svc, nil
}

func (a *App) openStore(ctx context.Context) (todo.Store, error) {
	sc := a.cfg.Store
	a.logger.Debug("Opening store", slog.String("driver", sc.Driver), slog.String("path", sc.Path))

	switch sc.Driver {
	case config.DriverMemory:
		return memstore.New(), nil

	case config.DriverJSON:
		return jsonstore.Open(sc.Path)

	case config.DriverSQLite:
		path := sc.Path
		if path == "" {
			path = defaultSQLitePath
		}
		s, err := sqlitestore.Open(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil

	case config.DriverNATS:
		nc, err := nats.Connect(sc.NATSURL, nats.Name(appName))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.closers = append(a.closers, nc.Drain)
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		return natskv.New(ctx, js, sc.Bucket)
	}
	return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
}
