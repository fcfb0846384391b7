package backend

import (
	"errors"
	"fmt"
	"strings"

	"wealthwise/internal/config"
)

// Config selects and locates a ledger store.
type Config struct {
	Type BackendType
	// SQLiteDBPath is the database file for the sqlite store.
	SQLiteDBPath string
	// DatabaseURL is the postgres:// DSN for the postgres store.
	DatabaseURL string
}

// FromAppConfig picks the ledger store settings out of the application
// config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	cfg := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
	}
	if !cfg.Type.IsValid() {
		return Config{}, unknownType(cfg.Type)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite ledger store needs SQLITE_DB_PATH")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return errors.New("postgres ledger store needs DATABASE_URL")
		}
	case MemoryBackend:
	default:
		return unknownType(c.Type)
	}
	return nil
}

func unknownType(bt BackendType) error {
	return fmt.Errorf("unknown ledger store %q (want one of %s)", bt, strings.Join(GetBackendTypeStrings(), ", "))
}

// GetBackendTypes lists the supported ledger stores.
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}

func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = t.String()
	}
	return strs
}
