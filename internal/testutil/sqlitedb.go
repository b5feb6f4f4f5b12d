// Package testutil opens in-memory Record Stores for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var schema = []string{
	`CREATE TABLE profiles (
		id INTEGER PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		role TEXT NOT NULL,
		employment_type TEXT NOT NULL,
		hourly_rate NUMERIC,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		start_date DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE working_hours (
		id INTEGER PRIMARY KEY,
		profile_id INTEGER NOT NULL,
		client_id INTEGER,
		project_id INTEGER,
		work_date DATETIME NOT NULL,
		start_time TEXT,
		end_time TEXT,
		total_hours NUMERIC NOT NULL,
		overtime_hours NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE bulk_payroll (
		id INTEGER PRIMARY KEY,
		reference TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		pay_period_start DATETIME NOT NULL,
		pay_period_end DATETIME NOT NULL,
		status TEXT NOT NULL,
		total_records INTEGER NOT NULL DEFAULT 0,
		processed_records INTEGER NOT NULL DEFAULT 0,
		succeeded_records INTEGER NOT NULL DEFAULT 0,
		failed_records INTEGER NOT NULL DEFAULT 0,
		total_amount NUMERIC NOT NULL DEFAULT 0,
		created_by TEXT,
		driver_id TEXT,
		lease_expires_at DATETIME,
		last_item_id INTEGER NOT NULL DEFAULT 0,
		failure_reason TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE bulk_payroll_items (
		id INTEGER PRIMARY KEY,
		bulk_payroll_id INTEGER NOT NULL,
		profile_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		payroll_id INTEGER,
		error_code TEXT,
		error_message TEXT,
		processed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (bulk_payroll_id, profile_id)
	)`,
	`CREATE TABLE payroll (
		id INTEGER PRIMARY KEY,
		profile_id INTEGER NOT NULL,
		bulk_payroll_id INTEGER,
		idempotency_key TEXT UNIQUE,
		pay_period_start DATETIME NOT NULL,
		pay_period_end DATETIME NOT NULL,
		total_hours NUMERIC NOT NULL,
		hourly_rate NUMERIC NOT NULL,
		gross_pay NUMERIC NOT NULL,
		deductions NUMERIC NOT NULL,
		net_pay NUMERIC NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		actor_role TEXT,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		request_id TEXT,
		created_at DATETIME NOT NULL
	)`,
}

// OpenSQLite returns a private in-memory database with the workforce schema applied.
// The pool is capped at one connection, so callers must not reuse the root handle
// inside a transaction callback.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// Node returns a snowflake node for tests.
func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
