package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"capture-analyze-pipeline/config"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// Database wraps the MySQL connection used by the pipeline and handlers.
type Database struct {
	db *sql.DB
}

// NewDatabase opens the MySQL connection and waits for it to become reachable.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	deadline := time.Now().Add(60 * time.Second)
	waitInterval := 1 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr := db.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) {
			db.Close()
			return nil, fmt.Errorf("database not reachable: %w", pingErr)
		}
		log.WithError(pingErr).Warnf("Database connection failed, retrying in %v", waitInterval)
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying database connection
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// CreateTables creates the logs, settings and email_list tables if they don't exist.
func (d *Database) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS logs (
			id BIGINT NOT NULL AUTO_INCREMENT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			is_anomaly BOOLEAN NOT NULL DEFAULT FALSE,
			reason TEXT,
			diff_percentage FLOAT NOT NULL DEFAULT 0.0,
			image_url TEXT,
			image_path VARCHAR(255),
			PRIMARY KEY (id),
			INDEX idx_logs_created_at (created_at),
			INDEX idx_logs_is_anomaly (is_anomaly)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT NOT NULL,
			anomalies_to_watch TEXT,
			PRIMARY KEY (id)
		)`,
		`CREATE TABLE IF NOT EXISTS email_list (
			id INT NOT NULL AUTO_INCREMENT,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id)
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Info("logs, settings and email_list tables created/verified")
	return nil
}
