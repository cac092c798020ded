package backend

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"ledgerdesk/internal/config"
)

// BackendType names a ledger store implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

var backendTypes = []BackendType{MemoryBackend, SQLiteBackend}

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid reports whether bt is a store this package can open.
func (bt BackendType) IsValid() bool {
	return slices.Contains(backendTypes, bt)
}

// Config selects and parameterizes the ledger store.
type Config struct {
	Type BackendType

	// sqlite only
	SQLiteDBPath string

	// memory only; empty uses the built-in demo ledger
	SeedDir string

	// Timezone in which the engine decides what "today" is; nil means UTC.
	Location *time.Location

	// Ledger events are published only when AMQPURL is set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig picks the backend settings out of the process configuration.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("app config is nil")
	}

	bt := BackendType(app.DataBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("unknown DATA_BACKEND %q: want one of %v", app.DataBackend, backendTypes)
	}

	loc, err := app.Location()
	if err != nil {
		return Config{}, fmt.Errorf("ledger timezone %q: %w", app.LedgerTimezone, err)
	}

	return Config{
		Type:         bt,
		SQLiteDBPath: app.SQLiteDBPath,
		SeedDir:      app.SeedDir,
		Location:     loc,
		AMQPURL:      app.AMQPURL,
		AMQPExchange: app.AMQPExchange,
		AMQPQueue:    app.AMQPQueue,
	}, nil
}

func (c Config) Validate() error {
	switch {
	case !c.Type.IsValid():
		return fmt.Errorf("unknown backend type %q", c.Type)
	case c.Type == SQLiteBackend && c.SQLiteDBPath == "":
		return errors.New("sqlite backend needs SQLITE_DB_PATH")
	}
	return nil
}
