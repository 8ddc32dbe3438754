package postgresql

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/flowboard/flowboard/pkg/persistence/sqlbase"
)

func runMigrations(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	manager := sqlbase.NewMigrationManager(logger, db, migrations())

	return manager.RunMigrations(ctx)
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				access_level TEXT NOT NULL DEFAULT 'private',
				version BIGINT NOT NULL DEFAULT 0,
				owner TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE IF NOT EXISTS nodes (
				id TEXT NOT NULL,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				node_type TEXT NOT NULL,
				layer TEXT NOT NULL,
				parent_node_id TEXT,
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				data JSONB NOT NULL DEFAULT '{}'::jsonb,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX IF NOT EXISTS idx_nodes_scope
				ON nodes (workflow_id, layer, parent_node_id);

			CREATE TABLE IF NOT EXISTS edges (
				id TEXT NOT NULL,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				source TEXT NOT NULL,
				target TEXT NOT NULL,
				layer TEXT NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX IF NOT EXISTS idx_edges_layer
				ON edges (workflow_id, layer);

			CREATE TABLE IF NOT EXISTS action_templates (
				id TEXT PRIMARY KEY,
				action_name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				resources JSONB NOT NULL DEFAULT '[]'::jsonb,
				deliverables JSONB NOT NULL DEFAULT '[]'::jsonb
			);
		`,
	}
}
