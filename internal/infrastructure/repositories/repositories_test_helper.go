package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createProfileTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE profiles (
		id TEXT PRIMARY KEY,
		session_wallet_address TEXT NOT NULL UNIQUE,
		cluster_id TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE linked_accounts (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		address TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE virtual_sessions (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		rpc_url TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(profile_id, chain_id)
	);`)
}

func createOperationTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE operations (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		operation_set_id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		unsigned_payload jsonb DEFAULT '{}',
		signed_payload TEXT,
		intent jsonb DEFAULT '{}',
		metadata jsonb DEFAULT '{}',
		error_message TEXT,
		completed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE transactions (
		id TEXT PRIMARY KEY,
		operation_id TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		tx_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		gas_used TEXT,
		created_at DATETIME
	);`)
}

func createBatchTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE batches (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		entries jsonb NOT NULL DEFAULT '[]',
		atomic_execution BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL,
		completed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
}
