// Package backend opens the history source named by the data configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/db"
	"github.com/lucasnoah/ecosystemci/internal/pgstore"
	"github.com/lucasnoah/ecosystemci/internal/store"
)

// Backend is an opened history source plus whatever must be released with it.
type Backend struct {
	Kind   string
	Source store.Source
	close  func() error
}

// Open connects to the source selected by cfg.Source. token authenticates
// remote reads and may be empty.
func Open(ctx context.Context, cfg config.DataConfig, token string) (*Backend, error) {
	b := &Backend{Kind: cfg.Source, close: func() error { return nil }}
	switch cfg.Source {
	case "", config.SourceFile:
		b.Kind = config.SourceFile
		b.Source = store.NewFileStore(cfg.Dir)
	case config.SourceRemote:
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("data.remote_url is required for source %q", cfg.Source)
		}
		b.Source = store.NewRemoteSource(cfg.RemoteURL, token, nil)
	case config.SourceMock:
		b.Source = store.NewMockSource()
	case config.SourceSQLite:
		path := cfg.SQLitePath
		if path == "" {
			var err error
			if path, err = db.DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		d, err := db.Open(path)
		if err != nil {
			return nil, err
		}
		if err := d.Migrate(); err != nil {
			d.Close()
			return nil, fmt.Errorf("migrate %s: %w", path, err)
		}
		b.Source = d
		b.close = d.Close
	case config.SourcePostgres:
		s, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		b.Source = s
		b.close = func() error { s.Close(); return nil }
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}
	return b, nil
}

// Store returns the source as a writable store, or store.ErrReadOnly.
func (b *Backend) Store() (store.Store, error) {
	s, ok := b.Source.(store.Store)
	if !ok {
		return nil, fmt.Errorf("%s: %w", b.Kind, store.ErrReadOnly)
	}
	return s, nil
}

// Events returns the backend's audit trail reader, if it keeps one.
func (b *Backend) Events() (store.EventReader, bool) {
	r, ok := b.Source.(store.EventReader)
	return r, ok
}

// Stacks lists the stacks the backend already holds data for, when it can tell.
func (b *Backend) Stacks(ctx context.Context) ([]string, error) {
	switch s := b.Source.(type) {
	case *store.FileStore:
		return s.Stacks()
	case *store.MockSource:
		return s.Stacks()
	case *db.DB:
		return s.Stacks(ctx)
	case *pgstore.Store:
		return s.Stacks(ctx)
	}
	return nil, nil
}

// Close releases database handles. It is safe to call on every kind.
func (b *Backend) Close() error {
	return b.close()
}
