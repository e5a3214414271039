package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres connects to PostgreSQL database and creates the tables
// the moderation ledger writes to.
func ConnectPostgres(ctx context.Context, postgresURI string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := InitPostgresTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS message_flags (
			id UUID PRIMARY KEY,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			recipient_id VARCHAR(64) NOT NULL,
			ip_address VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			keywords TEXT NOT NULL,
			action_taken VARCHAR(50) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_flags_recipient_id ON message_flags(recipient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_message_flags_ip_address ON message_flags(ip_address)`,
		`CREATE INDEX IF NOT EXISTS idx_message_flags_created_at ON message_flags(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
