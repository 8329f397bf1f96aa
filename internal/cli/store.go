package cli

import (
	"scout-agent/internal/infrastructure/config"
	"scout-agent/internal/infrastructure/env"
	"scout-agent/internal/infrastructure/store"
)

// StoreOptions are the flags shared by the commands that only read or maintain the database.
type StoreOptions struct {
	*RootOptions
	Database string
}

// databasePath resolves the database the same way run does: flag, then SCOUT_DB, then the default.
func (o *StoreOptions) databasePath() string {
	if o.Database != "" {
		return o.Database
	}
	envService := env.NewEnvService(o.EnvDir)
	return config.StoreConfig{Database: envService.Get(env.KeyDatabase)}.GetDatabase()
}

func (o *StoreOptions) open() (*store.Store, error) {
	st, err := store.Open(o.databasePath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
