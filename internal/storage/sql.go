package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xaenox/botchat/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

const stateRowID = 1

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// SQLStorage keeps the state in a single sim_state row. It works on
// PostgreSQL and SQLite.
type SQLStorage struct {
	db       *sql.DB
	postgres bool
	logger   *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*SQLStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return newSQLStorage(db, true, logger)
}

// NewSQLiteStorage opens a database file; ":memory:" keeps it in memory.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection, so ":memory:" is a single database and writes never
	// race each other.
	db.SetMaxOpenConns(1)
	return newSQLStorage(db, false, logger)
}

func newSQLStorage(db *sql.DB, postgres bool, logger *zap.Logger) (*SQLStorage, error) {
	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &SQLStorage{db: db, postgres: postgres, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *SQLStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQLStorage) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStorage) Load(ctx context.Context) (*models.State, error) {
	query := s.rebind(`
		SELECT bots, messages, topics, settings
		FROM sim_state
		WHERE id = ?`)

	var bots, messages, topics, settings string
	err := s.db.QueryRowContext(ctx, query, stateRowID).Scan(&bots, &messages, &topics, &settings)
	if errors.Is(err, sql.ErrNoRows) {
		st := models.DefaultState()
		if err := s.Save(ctx, st); err != nil {
			return nil, err
		}
		s.logger.Info("Initialized default state")
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading state: %w", err)
	}

	st := &models.State{}
	for _, col := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"bots", bots, &st.Bots},
		{"messages", messages, &st.Messages},
		{"topics", topics, &st.Topics},
		{"settings", settings, &st.Settings},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("error decoding %s: %w", col.name, err)
		}
	}
	st.Normalize()
	return st, nil
}

func (s *SQLStorage) Save(ctx context.Context, state *models.State) error {
	cols := make([]any, 0, 4)
	for _, v := range []any{state.Bots, state.Messages, state.Topics, state.Settings} {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("error encoding state: %w", err)
		}
		cols = append(cols, string(raw))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO sim_state (id, bots, messages, topics, settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			bots = excluded.bots,
			messages = excluded.messages,
			topics = excluded.topics,
			settings = excluded.settings,
			updated_at = excluded.updated_at`)

	args := append([]any{stateRowID}, cols...)
	args = append(args, time.Now().UTC())
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error saving state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing state: %w", err)
	}
	return nil
}

func (s *SQLStorage) Reset(ctx context.Context) (*models.State, error) {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sim_state WHERE id = ?`), stateRowID); err != nil {
		return nil, fmt.Errorf("error resetting state: %w", err)
	}
	return s.Load(ctx)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
