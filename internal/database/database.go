package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sqlx.DB
}

// NewDB creates a new database connection
func NewDB(databaseURL string) (*DB, error) {
	if databaseURL == "" {
		databaseURL = "safetylearn.db" // Default SQLite file
	}

	db, err := sqlx.Connect("sqlite3", databaseURL+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dbWrapper := &DB{DB: db}

	// Initialize database schema
	if err := dbWrapper.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Database connection established and tables initialized")
	return dbWrapper, nil
}

// createTables creates the necessary database tables
func (db *DB) createTables() error {
	// Identity provider accounts (credentials only; profile data lives in users)
	authUsersTable := `
	CREATE TABLE IF NOT EXISTS auth_users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		age INTEGER NOT NULL DEFAULT 0,
		age_group TEXT NOT NULL DEFAULT '',
		email_confirmed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	// User profiles, one per identity, created lazily on first read
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		age_group TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (id) REFERENCES auth_users(id) ON DELETE CASCADE
	);`

	// Learning progress, one row per identity
	progressTable := `
	CREATE TABLE IF NOT EXISTS user_progress (
		user_id TEXT PRIMARY KEY,
		current_level INTEGER NOT NULL DEFAULT 1,
		total_lessons_completed INTEGER NOT NULL DEFAULT 0,
		streak_days INTEGER NOT NULL DEFAULT 1,
		total_points INTEGER NOT NULL DEFAULT 0,
		completed_lesson_ids TEXT NOT NULL DEFAULT '[]',
		last_activity_date TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (user_id) REFERENCES auth_users(id) ON DELETE CASCADE
	);`

	// Static achievement catalog, seeded at startup
	achievementsTable := `
	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT 'Award',
		category TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	// Unlocked achievements, append-only, unique per (user, achievement)
	userAchievementsTable := `
	CREATE TABLE IF NOT EXISTS user_achievements (
		user_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, achievement_id),
		FOREIGN KEY (user_id) REFERENCES auth_users(id) ON DELETE CASCADE
	);`

	// Create indexes for better performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_auth_users_email ON auth_users(email);`,
		`CREATE INDEX IF NOT EXISTS idx_user_achievements_user_id ON user_achievements(user_id);`,
	}

	// Execute table creation
	tables := []string{authUsersTable, usersTable, progressTable, achievementsTable, userAchievementsTable}
	for _, query := range tables {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
