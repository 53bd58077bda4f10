package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/cristianadrielbraun/qrlinks/internal/logging"
)

// dialect captures the differences between the supported databases.
type dialect struct {
	name       string // database/sql driver name
	blobType   string
	dollarArgs bool // $1, $2 ... instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite", blobType: "BLOB"}
	postgresDialect = dialect{name: "pgx", blobType: "BYTEA", dollarArgs: true}
)

// rebind rewrites ? placeholders for drivers that number their arguments.
func (d dialect) rebind(q string) string {
	if !d.dollarArgs {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// OpenSQLite opens (creating if needed) the SQLite database at path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open(sqliteDialect.name, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite serialises writers and :memory: is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logging.Warn("SQLite pragma skipped", "pragma", pragma, "error", err)
		}
	}
	return newSQLStore(ctx, db, sqliteDialect)
}

// OpenPostgres connects to Postgres through pgx.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", d.name, err)
	}
	s := &SQLStore{db: db, d: d}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS links (
			id TEXT PRIMARY KEY,
			name TEXT,
			target_url TEXT NOT NULL,
			logo_mode TEXT NOT NULL DEFAULT 'default',
			logo_blob ` + s.d.blobType + `,
			logo_mime TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_updated_at ON links (updated_at)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			value_blob ` + s.d.blobType + `,
			value_mime TEXT
		)`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.rebind(q), args...)
}

// ListLinks returns one page of links without their logos.
func (s *SQLStore) ListLinks(ctx context.Context, page, perPage int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count links: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		`SELECT id, name, target_url, logo_mode, created_at, updated_at
		 FROM links ORDER BY updated_at DESC, id ASC LIMIT ? OFFSET ?`), perPage, (page-1)*perPage)
	if err != nil {
		return Page{}, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	links := make([]Link, 0, perPage)
	for rows.Next() {
		var (
			l                Link
			name             sql.NullString
			mode             string
			created, updated string
		)
		if err := rows.Scan(&l.ID, &name, &l.TargetURL, &mode, &created, &updated); err != nil {
			return Page{}, fmt.Errorf("scan link: %w", err)
		}
		l.Name = name.String
		l.LogoMode = LogoMode(mode)
		l.CreatedAt = parseTime(created)
		l.UpdatedAt = parseTime(updated)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("list links: %w", err)
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	return Page{Links: links, Page: page, PerPage: perPage, TotalCount: total, TotalPages: totalPages}, nil
}

// CreateLink inserts l. CreatedAt doubles as UpdatedAt.
func (s *SQLStore) CreateLink(ctx context.Context, l Link) error {
	if l.LogoMode == "" {
		l.LogoMode = LogoDefault
	}
	now := formatTime(l.CreatedAt)
	_, err := s.exec(ctx,
		`INSERT INTO links (id, name, target_url, logo_mode, logo_blob, logo_mime, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, nullString(l.Name), l.TargetURL, string(l.LogoMode), nullBytes(l.Logo.Data), nullString(l.Logo.Mime), now, now)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// GetLink loads a link including its logo.
func (s *SQLStore) GetLink(ctx context.Context, id string) (Link, error) {
	var (
		l                Link
		name, mime       sql.NullString
		mode             string
		blob             []byte
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		`SELECT id, name, target_url, logo_mode, logo_blob, logo_mime, created_at, updated_at
		 FROM links WHERE id = ?`), id).
		Scan(&l.ID, &name, &l.TargetURL, &mode, &blob, &mime, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, ErrNotFound
	}
	if err != nil {
		return Link{}, fmt.Errorf("get link: %w", err)
	}
	l.Name = name.String
	l.LogoMode = LogoMode(mode)
	l.Logo = Blob{Data: blob, Mime: mime.String}
	l.CreatedAt = parseTime(created)
	l.UpdatedAt = parseTime(updated)
	return l, nil
}

// UpdateTargetURL changes the redirect target.
func (s *SQLStore) UpdateTargetURL(ctx context.Context, id, targetURL string, now time.Time) error {
	return s.updateOne(ctx, `UPDATE links SET target_url = ?, updated_at = ? WHERE id = ?`, targetURL, formatTime(now), id)
}

// UpdateName changes the display name; an empty name clears it.
func (s *SQLStore) UpdateName(ctx context.Context, id, name string, now time.Time) error {
	return s.updateOne(ctx, `UPDATE links SET name = ?, updated_at = ? WHERE id = ?`, nullString(name), formatTime(now), id)
}

// DeleteLink removes a link.
func (s *SQLStore) DeleteLink(ctx context.Context, id string) error {
	return s.updateOne(ctx, `DELETE FROM links WHERE id = ?`, id)
}

func (s *SQLStore) updateOne(ctx context.Context, q string, args ...any) error {
	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSettingBlob loads a binary setting.
func (s *SQLStore) GetSettingBlob(ctx context.Context, key string) (Blob, error) {
	var (
		blob []byte
		mime sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT value_blob, value_mime FROM settings WHERE key = ?`), key).
		Scan(&blob, &mime)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(blob) == 0) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, fmt.Errorf("get setting %s: %w", key, err)
	}
	return Blob{Data: blob, Mime: mime.String}, nil
}

// PutSettingBlob inserts or replaces a binary setting.
func (s *SQLStore) PutSettingBlob(ctx context.Context, key string, b Blob) error {
	_, err := s.exec(ctx,
		`INSERT INTO settings (key, value, value_blob, value_mime) VALUES (?, '', ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, value_blob = excluded.value_blob, value_mime = excluded.value_mime`,
		key, b.Data, b.Mime)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
