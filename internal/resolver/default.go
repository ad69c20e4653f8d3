package resolver

import (
	"context"
	"sync"

	"github.com/basepair/resourcereg/internal/config"
	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/store/kv"
	"github.com/basepair/resourcereg/internal/store/remote"
	"github.com/basepair/resourcereg/internal/store/sqlstore"
)

// NewRegistry returns a store.Registry with every backend this module
// ships pre-registered under its PYGRDATAPATH scheme: "kv" for the Local
// KV Store, "mysql"/"postgres" for the SQL Store, "ws" for the Remote RPC
// Store. Both Default and cmd/regctl build their store.Registry this way.
func NewRegistry() *store.Registry {
	reg := store.NewRegistry()
	reg.Register("kv", kv.NewBackendFactory())
	reg.Register("mysql", sqlstore.NewBackendFactory(sqlstore.DialectMySQL))
	reg.Register("postgres", sqlstore.NewBackendFactory(sqlstore.DialectPostgres))
	reg.Register("ws", remote.NewBackendFactory())
	return reg
}

var (
	defaultOnce sync.Once
	defaultInst *Resolver
	defaultErr  error
)

// Default returns the process-wide Resolver built from config.Load() and
// NewRegistry, constructed exactly once per process. It exists only as a
// convenience constructor for simple callers (a one-off script, a REPL);
// internal/pathproxy and cmd/regctl both take a *Resolver explicitly rather
// than calling Default, so the core packages never depend on implicit
// global state.
func Default(ctx context.Context) (*Resolver, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultErr = err
			return
		}
		defaultInst, defaultErr = New(ctx, Options{
			PathSource: cfg.Path,
			Registry:   NewRegistry(),
		})
	})
	return defaultInst, defaultErr
}
