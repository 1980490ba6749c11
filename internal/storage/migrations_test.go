package storage_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dshills/saasrank/internal/storage"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(storage.DriverName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// Each pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(ctx context.Context, t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var name string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("Failed to check table %s: %v", table, err)
	}
	return true
}

func TestApplyMigrations(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := storage.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	version, err := storage.SchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("Failed to query schema version: %v", err)
	}
	if version != storage.CurrentSchemaVersion {
		t.Errorf("Expected schema version %s, got %s", storage.CurrentSchemaVersion, version)
	}

	tables := []string{
		"schema_version", "candidates", "candidate_facts", "chunks", "chunks_fts", "embeddings",
	}
	for _, table := range tables {
		if !tableExists(ctx, t, db, table) {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := storage.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("First migration failed: %v", err)
	}
	if err := storage.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("Second migration failed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		t.Fatalf("Failed to count versions: %v", err)
	}
	if count != len(storage.AllMigrations) {
		t.Errorf("Expected %d schema version records, got %d", len(storage.AllMigrations), count)
	}
}

func TestSchemaVersion_Unmigrated(t *testing.T) {
	db := openRawDB(t)

	version, err := storage.SchemaVersion(context.Background(), db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != "0.0.0" {
		t.Errorf("Expected 0.0.0 for an empty database, got %s", version)
	}
}

func TestRollbackMigration(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := storage.RollbackMigration(ctx, db); err == nil {
		t.Error("Expected an error rolling back an empty database")
	}

	if err := storage.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	for i := len(storage.AllMigrations) - 1; i >= 0; i-- {
		if err := storage.RollbackMigration(ctx, db); err != nil {
			t.Fatalf("Rollback of %s failed: %v", storage.AllMigrations[i].Version, err)
		}
	}

	for _, table := range []string{"candidates", "chunks", "embeddings", "schema_version"} {
		if tableExists(ctx, t, db, table) {
			t.Errorf("Table %s should be dropped after rollback", table)
		}
	}

	// The schema can be rebuilt after a full rollback
	if err := storage.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("Re-applying migrations failed: %v", err)
	}
}

func TestTrigramMigrationReindexesChunks(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := storage.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	if err := storage.RollbackMigration(ctx, db); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	version, err := storage.SchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != "1.0.0" {
		t.Fatalf("Expected 1.0.0 after one rollback, got %s", version)
	}

	// Rows written under the word tokenizer
	if _, err := db.ExecContext(ctx, "INSERT INTO candidates (id, name, category) VALUES ('seikyu', 'Seikyu', 'invoice')"); err != nil {
		t.Fatalf("Failed to insert candidate: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO chunks (id, candidate_id, doc_type, content, content_hash) VALUES ('seikyu-1', 'seikyu', 'feature', '請求書の発行と請求管理を自動化します', x'00')"); err != nil {
		t.Fatalf("Failed to insert chunk: %v", err)
	}

	countMatches := func() int {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks_fts WHERE chunks_fts MATCH '"請求管理"'`).Scan(&n); err != nil {
			t.Fatalf("FTS query failed: %v", err)
		}
		return n
	}
	if n := countMatches(); n != 0 {
		t.Fatalf("Expected no word-tokenizer match inside unbroken text, got %d", n)
	}

	if err := storage.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("Re-applying migrations failed: %v", err)
	}
	if n := countMatches(); n != 1 {
		t.Errorf("Expected the rebuilt trigram index to match, got %d", n)
	}
}
