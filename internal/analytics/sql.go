package analytics

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"haggle-go/internal/negotiation"
	"haggle-go/internal/pricing"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Dialect selects the SQL flavour of an SQLSink.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const defaultSQLitePath = "tmp/haggle_analytics.sqlite"

var transitionCols = []string{"session_id", "deal_id", "event", "from_state", "to_state", "round", "amount", "zone", "at"}

// SQLSink appends transitions to a SQL table.
type SQLSink struct {
	dialect Dialect
	db      *sql.DB
	insert  string
	timeout time.Duration
}

// OpenSQLSink connects, pings and migrates the database. For sqlite the dsn is a file
// path; for postgres it is a pgx connection string.
func OpenSQLSink(dialectRaw, dsn string, log zerolog.Logger) (*SQLSink, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(dialectRaw)))
	if dialect == "" {
		dialect = DialectSQLite
	}

	var driverName string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		if strings.TrimSpace(dsn) == "" {
			dsn = defaultSQLitePath
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	case DialectPostgres:
		driverName = "pgx"
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("postgres analytics sink requires a dsn")
		}
	default:
		return nil, fmt.Errorf("unsupported analytics dialect %q", dialectRaw)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	s := &SQLSink{dialect: dialect, db: db, timeout: 5 * time.Second}
	s.insert = s.insertQuery("transitions", transitionCols)
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("dialect", string(dialect)).Msg("analytics database ready")
	return s, nil
}

func (s *SQLSink) bind(pos int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQLSink) insertQuery(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = s.bind(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		strings.Join(ph, ", "),
	)
}

func (s *SQLSink) applyMigrations(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	record := s.insertQuery("schema_migrations", []string{"version", "applied_at"})
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		sqlBytes, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		for _, stmt := range splitStatements(string(sqlBytes)) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		if _, err := tx.ExecContext(ctx, record, base, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Record inserts one transition row.
func (s *SQLSink) Record(tr negotiation.Transition) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, s.insert,
		tr.SessionID,
		tr.DealID,
		tr.Event,
		string(tr.From),
		string(tr.To),
		tr.Round,
		tr.Amount.String(),
		string(tr.Zone),
		tr.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Transitions returns the recorded transitions of one session in insertion order.
func (s *SQLSink) Transitions(ctx context.Context, sessionID string) ([]negotiation.Transition, error) {
	q := fmt.Sprintf("SELECT %s FROM transitions WHERE session_id = %s ORDER BY id", strings.Join(transitionCols, ", "), s.bind(1))
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []negotiation.Transition
	for rows.Next() {
		var (
			tr               negotiation.Transition
			from, to, zone   string
			amount, atString string
		)
		if err := rows.Scan(&tr.SessionID, &tr.DealID, &tr.Event, &from, &to, &tr.Round, &amount, &zone, &atString); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = negotiation.State(from)
		tr.To = negotiation.State(to)
		tr.Zone = pricing.Zone(zone)
		if tr.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		if tr.At, err = time.Parse(time.RFC3339Nano, atString); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", atString, err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLSink) Close() error { return s.db.Close() }
