package cli

import (
	"errors"
	"log/slog"

	"github.com/roach88/maat/internal/catalog"
	"github.com/roach88/maat/internal/config"
	"github.com/roach88/maat/internal/querysql"
	"github.com/roach88/maat/internal/ranking"
	"github.com/roach88/maat/internal/store"
)

// session is the state one command works on: the ranking store and, when
// the command needs handlers, the registry built from the catalog.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	registry *ranking.Registry
}

// openSession opens the configured store. With withCatalog set it also loads
// the catalog and registers its entity types; a missing catalog file leaves
// the registry empty.
func openSession(opts *RootOptions, withCatalog bool) (*session, error) {
	cfg, logger := opts.Config, opts.Logger

	logger.Debug("opening database", "driver", cfg.Driver, "dsn", cfg.DSN)
	st, err := openStore(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s := &session{cfg: cfg, logger: logger, store: st, registry: ranking.NewRegistry()}
	if !withCatalog {
		return s, nil
	}

	cat, err := catalog.Load(cfg.Catalog)
	switch {
	case errors.Is(err, catalog.ErrNoCatalog):
		logger.Debug("no catalog", "path", cfg.Catalog)
		return s, nil
	case err != nil:
		s.close()
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	types, err := catalog.Register(s.registry, st.DB(), st.Dialect(), cat)
	if err != nil {
		s.close()
		return nil, WrapExitError(ExitCommandError, "failed to register catalog", err)
	}
	logger.Debug("catalog registered", "path", cat.Source, "entity_types", len(types))
	return s, nil
}

// openStore sizes the pool so cfg.Parallel typologies can flush at once.
func openStore(cfg *config.Config) (*store.Store, error) {
	dialect, err := querysql.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	pool := store.WithMaxOpenConns(store.ConnsForParallel(cfg.Parallel))
	if dialect.Name == querysql.SQLite.Name {
		return store.Open(cfg.DSN, pool)
	}
	return store.OpenDriver(cfg.Driver, cfg.DSN, pool)
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}
