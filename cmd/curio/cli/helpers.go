package cli

import (
	"log/slog"
	"os"

	"github.com/curiohq/curio/internal/service"
	"github.com/curiohq/curio/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// the CURIO_DATA_DIR env var, or ~/.curio as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("CURIO_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.curio"
}

// openStore opens the SQLite store in the resolved data directory.
func openStore() (*store.Store, error) {
	return store.Open(resolveDataDir())
}

// quietLogger is for one-shot CLI commands, where request-style info logs
// would just be noise on stdout.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// newAuthService wires an AuthService for CLI use.
func newAuthService(st *store.Store) *service.AuthService {
	return service.NewAuthService(st, quietLogger())
}
