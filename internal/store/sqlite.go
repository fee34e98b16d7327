package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/lacquerai/dashwire/internal/widget"
)

//go:embed schema.sql
var schemaSQL string

// SQLitePersister stores one row per widget, ordered by dashboard position.
type SQLitePersister struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and creates) the database at path and initializes the
// schema. Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*SQLitePersister, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	p := &SQLitePersister{db: db, path: path}
	if err := p.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// InitSchema creates the tables if needed.
func (p *SQLitePersister) InitSchema() error {
	if _, err := p.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Path returns the database path.
func (p *SQLitePersister) Path() string {
	return p.path
}

// Close closes the database.
func (p *SQLitePersister) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Load reads all widgets in position order.
func (p *SQLitePersister) Load(ctx context.Context) (*widget.Config, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, body FROM widgets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query widgets: %w", err)
	}
	defer rows.Close()

	widgets := []widget.Widget{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan widget: %w", err)
		}

		var w widget.Widget
		if err := json.Unmarshal([]byte(body), &w); err != nil {
			return nil, fmt.Errorf("failed to decode widget %s: %w", id, err)
		}
		widgets = append(widgets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read widgets: %w", err)
	}

	cfg := widget.NewConfig(widgets)

	var version, total sql.NullString
	_ = p.db.QueryRowContext(ctx, `SELECT value FROM dashboard_meta WHERE key = 'version'`).Scan(&version)
	_ = p.db.QueryRowContext(ctx, `SELECT value FROM dashboard_meta WHERE key = 'total_widgets'`).Scan(&total)
	if version.Valid {
		cfg.Version = version.String
	}
	if n, err := strconv.Atoi(total.String); err == nil && n > 0 {
		cfg.TotalWidgets = n
	}

	return cfg, nil
}

// Save rewrites the widgets table in one transaction.
func (p *SQLitePersister) Save(ctx context.Context, cfg *widget.Config) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM widgets`); err != nil {
		return fmt.Errorf("failed to clear widgets: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, w := range cfg.Widgets {
		body, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("failed to encode widget %s: %w", w.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO widgets (id, position, type, title, body, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			w.ID, i, string(w.Type), w.Title, string(body), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert widget %s: %w", w.ID, err)
		}
	}

	version := cfg.Version
	if version == "" {
		version = widget.ConfigVersion
	}
	meta := map[string]string{
		"version":       version,
		"total_widgets": strconv.Itoa(cfg.TotalWidgets),
	}
	for key, value := range meta {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dashboard_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		)
		if err != nil {
			return fmt.Errorf("failed to write dashboard metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dashboard: %w", err)
	}
	return nil
}
