package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/afero"

	"github.com/clinicdesk/localbase/cli/internal/config"
	"github.com/clinicdesk/localbase/internal/journal"
	"github.com/clinicdesk/localbase/runtime/client"
	"github.com/clinicdesk/localbase/store"
)

// loadConfig resolves the app-data directory and reads the configuration.
func loadConfig() (*config.Config, error) {
	dir, err := config.Dir(flagDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve app-data directory: %w", err)
	}
	return config.Load(dir), nil
}

// app bundles the opened store, the client over it, and the journal.
type app struct {
	cfg     *config.Config
	store   *store.Store
	client  *client.Client
	journal *journal.Journal
}

// openApp opens the database and builds a client configured from cfg.
func openApp(cfg *config.Config) (*app, error) {
	s, err := store.Open(store.Options{Path: cfg.DatabasePath})
	if err != nil {
		return nil, err
	}

	var opts []client.Option
	if cfg.Cache.Enabled {
		opts = append(opts, client.WithCache(cfg.Cache.MaxEntries, cfg.CacheTTL()))
	}
	c := client.New(s, opts...)
	c.Use(client.LoggingMiddleware())

	j := journal.New(afero.NewOsFs(), cfg.JournalPath)
	if j.Enabled() {
		c.Use(j.Middleware())
	}

	return &app{cfg: cfg, store: s, client: c, journal: j}, nil
}

// Close flushes the journal and closes the store.
func (a *app) Close() {
	a.journal.Stop()
	a.store.Close()
}

// randomSecret returns a hex-encoded random secret.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
