// Package sqlite provides a SQLite implementation of the lifecycle
// journal.
//
// The journal is append-only diagnostics: every registration outcome,
// activation, rollback and removal is recorded as one row. Nothing
// reads it back to rebuild fabric state; a restarted daemon starts
// with an empty registry whatever the journal says.
//
// The database is opened in WAL mode so that the events query served
// over the API never blocks the writer. Writes are already serialised
// by the fabric writer lock, so statements run in autocommit mode and
// no transactions are needed.
//
// All queries are prepared once when the store is opened.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/logging"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is how created_at is stored. It sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal implements interpreter.Journal using SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger

	stmtInsert  *sql.Stmt
	stmtEntries *sql.Stmt
	stmtPrune   *sql.Stmt
}

var _ interpreter.Journal = (*Journal)(nil)

// New opens or creates a journal at dbPath.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(driverName, dsn(dbPath, [][2]string{{"journal_mode", "WAL"}, {"busy_timeout", "5000"}}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened journal")
	return j, nil
}

// NewInMemory creates an in-memory journal for testing.
func NewInMemory(ctx context.Context, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", ":memory:")

	db, err := sql.Open(driverName, dsn(":memory:", nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	return open(ctx, db, logger)
}

func open(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Journal, error) {
	j := &Journal{db: db, logger: logger}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := j.prepareStatements(ctx); err != nil {
		j.closeStatements()
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return j, nil
}

func (j *Journal) prepareStatements(ctx context.Context) error {
	var err error

	const sqlInsert = `
		INSERT INTO journal (created_at, kind, tree_id, member, switch, attempt, op_id, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if j.stmtInsert, err = j.db.PrepareContext(ctx, sqlInsert); err != nil {
		return fmt.Errorf("prepare Insert: %w", err)
	}

	// A NULL tree, empty switch or empty kind matches every row. A
	// negative limit means no limit.
	const sqlEntries = `
		SELECT id, created_at, kind, tree_id, member, switch, attempt, op_id, detail
		FROM journal
		WHERE (?1 IS NULL OR tree_id = ?1)
		  AND (?2 = '' OR switch = ?2)
		  AND (?3 = '' OR kind = ?3)
		ORDER BY id DESC
		LIMIT ?4`
	if j.stmtEntries, err = j.db.PrepareContext(ctx, sqlEntries); err != nil {
		return fmt.Errorf("prepare Entries: %w", err)
	}

	const sqlPrune = `
		DELETE FROM journal
		WHERE id <= (SELECT id FROM journal ORDER BY id DESC LIMIT 1 OFFSET ?)`
	if j.stmtPrune, err = j.db.PrepareContext(ctx, sqlPrune); err != nil {
		return fmt.Errorf("prepare Prune: %w", err)
	}

	return nil
}

// Close closes the prepared statements and the database.
func (j *Journal) Close() error {
	j.closeStatements()
	return j.db.Close()
}

func (j *Journal) closeStatements() {
	for _, stmt := range []*sql.Stmt{j.stmtInsert, j.stmtEntries, j.stmtPrune} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// Record appends e. A zero Time is replaced by the current time.
func (j *Journal) Record(ctx context.Context, e interpreter.JournalEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	start := time.Now()
	_, err := j.stmtInsert.ExecContext(ctx,
		e.Time.UTC().Format(timeLayout),
		string(e.Kind),
		int64(e.Tree),
		int64(e.Member),
		e.Switch,
		e.Attempt,
		int64(e.OpID),
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("record %s event for %s: %w", e.Kind, e.Switch, err)
	}
	j.logger.Log(ctx, logging.LevelTrace.ToSlog(), "sql", "stmt", "Insert", "kind", e.Kind, "switch", e.Switch, "duration", time.Since(start))
	return nil
}

// Entries returns the entries matching filter, newest first.
func (j *Journal) Entries(ctx context.Context, filter interpreter.JournalFilter) ([]interpreter.JournalEntry, error) {
	var tree sql.NullInt64
	if filter.Tree != nil {
		tree = sql.NullInt64{Int64: int64(*filter.Tree), Valid: true}
	}
	limit := int64(-1)
	if filter.Limit > 0 {
		limit = int64(filter.Limit)
	}

	rows, err := j.stmtEntries.QueryContext(ctx, tree, filter.Switch, string(filter.Kind), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []interpreter.JournalEntry
	for rows.Next() {
		var (
			e       interpreter.JournalEntry
			created string
			kind    string
			treeID  int64
			member  int64
			opID    int64
		)
		if err := rows.Scan(&e.ID, &created, &kind, &treeID, &member, &e.Switch, &e.Attempt, &opID, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if e.Time, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("journal row %d: bad created_at %q: %w", e.ID, created, err)
		}
		e.Kind = interpreter.EventKind(kind)
		e.Tree = dsa.TreeID(treeID)
		e.Member = uint32(member)
		e.OpID = uint64(opID)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes all but the newest keep entries and reports how many
// were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: negative keep %d", keep)
	}
	res, err := j.stmtPrune.ExecContext(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("pruned journal", "removed", n, "kept", keep)
	}
	return n, nil
}
