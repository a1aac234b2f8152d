// Package storage provides SQLite implementation of the RuleStore interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/nexus/internal/models"
)

// ErrFieldNotAllowed is returned by Search for a column outside the searchable set.
var ErrFieldNotAllowed = errors.New("field not searchable")

// searchable columns; field names are interpolated into SQL so only these may be used.
var searchable = map[string]struct{}{
	"title":    {},
	"category": {},
	"keywords": {},
	"content":  {},
}

// IsSearchable reports whether field may be passed to Search.
func IsSearchable(field string) bool {
	_, ok := searchable[field]
	return ok
}

// driverName is go-sqlite3 with a Unicode-aware ulower(). The built-in LOWER
// folds ASCII only, so "CONGÉ" would never match "congé".
const driverName = "sqlite3_nexus"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("ulower", strings.ToLower, true)
		},
	})
}

const ruleColumns = `id, title, category, keywords, content, doc_type, source_uri, updated_at`

// SQLiteRuleStore implements RuleStore using SQLite.
type SQLiteRuleStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRuleStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteRuleStore(dbPath string) (*SQLiteRuleStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRuleStore{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		doc_type TEXT NOT NULL DEFAULT '',
		source_uri TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_updated_at ON rules(updated_at);
	CREATE INDEX IF NOT EXISTS idx_rules_doc_type ON rules(doc_type);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts rule or replaces the row with the same id. UpdatedAt is set when zero.
func (s *SQLiteRuleStore) Upsert(ctx context.Context, rule *models.Rule) error {
	if rule.ID == "" {
		return errors.New("rule id is required")
	}
	if rule.UpdatedAt == 0 {
		rule.UpdatedAt = s.now().UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			keywords = excluded.keywords,
			content = excluded.content,
			doc_type = excluded.doc_type,
			source_uri = excluded.source_uri,
			updated_at = excluded.updated_at`,
		rule.ID, rule.Title, rule.Category, rule.Keywords, rule.Content, rule.DocType, rule.SourceURI, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", rule.ID, err)
	}
	return nil
}

// Get returns a rule by ID.
func (s *SQLiteRuleStore) Get(ctx context.Context, id string) (*models.Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a rule by ID, returning ErrRuleNotFound when none matches.
func (s *SQLiteRuleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Search returns rules where any field contains any keyword, case-insensitively.
// Keywords are bound as parameters with LIKE wildcards escaped; only searchable
// field names are accepted. An empty keyword or field set matches nothing.
func (s *SQLiteRuleStore) Search(ctx context.Context, keywords, fields []string, docType models.DocType, limit int) ([]*models.Rule, error) {
	for _, f := range fields {
		if !IsSearchable(f) {
			return nil, fmt.Errorf("%w: %q", ErrFieldNotAllowed, f)
		}
	}
	if len(keywords) == 0 || len(fields) == 0 || limit <= 0 {
		return nil, nil
	}

	query, args := buildSearchQuery(keywords, fields, docType, limit)
	return s.queryRules(ctx, query, args...)
}

func buildSearchQuery(keywords, fields []string, docType models.DocType, limit int) (string, []any) {
	preds := make([]string, 0, len(keywords)*len(fields))
	args := make([]any, 0, len(keywords)*len(fields)+2)
	for _, kw := range keywords {
		pattern := "%" + escapeLike(strings.ToLower(kw)) + "%"
		for _, f := range fields {
			preds = append(preds, "ulower("+f+`) LIKE ? ESCAPE '\'`)
			args = append(args, pattern)
		}
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + ruleColumns + ` FROM rules WHERE (`)
	b.WriteString(strings.Join(preds, " OR "))
	b.WriteString(")")
	if docType != models.DocTypeUnset {
		b.WriteString(" AND doc_type = ?")
		args = append(args, string(docType))
	}
	b.WriteString(" ORDER BY updated_at DESC, id LIMIT ?")
	args = append(args, limit)
	return b.String(), args
}

// escapeLike escapes the LIKE metacharacters so keywords match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Recent returns the most recently updated rules, optionally restricted to docType.
func (s *SQLiteRuleStore) Recent(ctx context.Context, docType models.DocType, limit int) ([]*models.Rule, error) {
	if limit <= 0 {
		return nil, nil
	}
	if docType != models.DocTypeUnset {
		return s.queryRules(ctx,
			`SELECT `+ruleColumns+` FROM rules WHERE doc_type = ? ORDER BY updated_at DESC, id LIMIT ?`,
			string(docType), limit)
	}
	return s.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM rules ORDER BY updated_at DESC, id LIMIT ?`, limit)
}

// Count returns the total number of rules.
func (s *SQLiteRuleStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteRuleStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteRuleStore) queryRules(ctx context.Context, query string, args ...any) ([]*models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(sc scanner) (*models.Rule, error) {
	var r models.Rule
	if err := sc.Scan(&r.ID, &r.Title, &r.Category, &r.Keywords, &r.Content, &r.DocType, &r.SourceURI, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
