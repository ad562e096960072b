package main

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/store"
	"github.com/erazemk/knjiznica/internal/store/filestore"
	"github.com/erazemk/knjiznica/internal/store/mongostore"
)

// openStore opens the configured backend, creating its schema or file when
// missing.
func openStore(ctx context.Context, cfg *config) (store.Store, error) {
	switch cfg.backend {
	case backendFile:
		s, err := filestore.Open(cfg.dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return s, nil

	case backendMongo:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongostore.Connect(ctx, cfg.mongoURL, cfg.mongoDB)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return s, nil

	default:
		database, err := db.Open(cfg.dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("ensuring database schema: %w", err)
		}
		return store.NewSQLStore(database), nil
	}
}
