// Package cmd provides common initialization for the command-line
// entrypoints.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowboard/flowboard/pkg/persistence"
	"github.com/flowboard/flowboard/pkg/persistence/file"
	"github.com/flowboard/flowboard/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL
// scheme: postgres:// (or postgresql://) for PostgreSQL, anything else
// is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
