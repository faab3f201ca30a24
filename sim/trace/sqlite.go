package trace

import (
	"database/sql"
	_ "embed"
	"fmt"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/flowsim/flowsim/sim"
)

//go:embed schema.sql
var schemaSQL string

// RunInfo describes the run a SQLiteWriter stores records for.
type RunInfo struct {
	Model   string
	Seed    int64
	Horizon float64
}

// SQLiteWriter is a Sink that buffers records and writes them to a SQLite
// database in batches. Every writer tags its rows with a fresh run ID, so
// several runs can share one database file.
//
// Buffered records are flushed at batch boundaries, on Close, and at process
// exit through atexit.
type SQLiteWriter struct {
	db        *sql.DB
	runID     string
	batchSize int
	closed    bool

	episodes  []EpisodeRecord
	transfers []TransferRecord
	lifecycle []LifecycleRecord
}

// NewSQLiteWriter opens (or creates) the database at path, applies the schema
// and registers the run.
func NewSQLiteWriter(path string, info RunInfo) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying trace schema: %w", err)
	}
	w := &SQLiteWriter{db: db, runID: sim.NewRunID(), batchSize: 10000}
	if _, err := db.Exec(`INSERT INTO runs (run_id, model, seed, horizon) VALUES (?, ?, ?, ?)`,
		w.runID, info.Model, info.Seed, info.Horizon); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering run: %w", err)
	}
	logrus.Infof("trace run %s written to %s", w.runID, path)
	atexit.Register(func() {
		if err := w.Close(); err != nil {
			logrus.Errorf("closing trace database: %v", err)
		}
	})
	return w, nil
}

// RunID returns the ID rows of this writer are tagged with.
func (w *SQLiteWriter) RunID() string { return w.runID }

// WriteEpisode buffers an episode record.
func (w *SQLiteWriter) WriteEpisode(r EpisodeRecord) {
	w.episodes = append(w.episodes, r)
	w.maybeFlush()
}

// WriteTransfer buffers a transfer record.
func (w *SQLiteWriter) WriteTransfer(r TransferRecord) {
	w.transfers = append(w.transfers, r)
	w.maybeFlush()
}

// WriteLifecycle buffers a lifecycle record.
func (w *SQLiteWriter) WriteLifecycle(r LifecycleRecord) {
	w.lifecycle = append(w.lifecycle, r)
	w.maybeFlush()
}

// Sink methods cannot return errors, so a failed batch write aborts the
// process like any other unrecoverable I/O fault during a run.
func (w *SQLiteWriter) maybeFlush() {
	if len(w.episodes)+len(w.transfers)+len(w.lifecycle) < w.batchSize {
		return
	}
	if err := w.Flush(); err != nil {
		panic(err)
	}
}

// Flush writes all buffered records in one transaction.
func (w *SQLiteWriter) Flush() error {
	if w.closed {
		return nil
	}
	if len(w.episodes)+len(w.transfers)+len(w.lifecycle) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning trace transaction: %w", err)
	}
	if err := w.insertAll(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trace transaction: %w", err)
	}
	w.episodes, w.transfers, w.lifecycle = nil, nil, nil
	return nil
}

func (w *SQLiteWriter) insertAll(tx *sql.Tx) error {
	ep, err := tx.Prepare(`INSERT INTO episodes (run_id, node, entity, start_time, end_time) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing episode insert: %w", err)
	}
	defer ep.Close()
	for _, r := range w.episodes {
		if _, err := ep.Exec(w.runID, r.Node, r.Entity, r.Start, r.End); err != nil {
			return fmt.Errorf("inserting episode %+v: %w", r, err)
		}
	}

	tr, err := tx.Prepare(`INSERT INTO transfers (run_id, edge, entity, kind, time, level) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing transfer insert: %w", err)
	}
	defer tr.Close()
	for _, r := range w.transfers {
		if _, err := tr.Exec(w.runID, r.Edge, r.Entity, string(r.Kind), r.Time, r.Level); err != nil {
			return fmt.Errorf("inserting transfer %+v: %w", r, err)
		}
	}

	lc, err := tx.Prepare(`INSERT INTO lifecycle (run_id, node, entity, kind, time) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing lifecycle insert: %w", err)
	}
	defer lc.Close()
	for _, r := range w.lifecycle {
		if _, err := lc.Exec(w.runID, r.Node, r.Entity, string(r.Kind), r.Time); err != nil {
			return fmt.Errorf("inserting lifecycle %+v: %w", r, err)
		}
	}
	return nil
}

// Close flushes remaining records and closes the database. Calling Close
// more than once is a no-op.
func (w *SQLiteWriter) Close() error {
	if w.closed {
		return nil
	}
	flushErr := w.Flush()
	w.closed = true
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("closing trace database: %w", err)
	}
	return flushErr
}

// LoadFlowTrace reads back every record stored for runID, ordered by time.
func LoadFlowTrace(path, runID string) (*FlowTrace, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}
	defer db.Close()

	ft := NewFlowTrace()
	rows, err := db.Query(`SELECT node, entity, start_time, end_time FROM episodes WHERE run_id = ? ORDER BY end_time, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying episodes: %w", err)
	}
	for rows.Next() {
		var r EpisodeRecord
		if err := rows.Scan(&r.Node, &r.Entity, &r.Start, &r.End); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning episode: %w", err)
		}
		ft.Episodes = append(ft.Episodes, r)
	}
	rows.Close()

	rows, err = db.Query(`SELECT edge, entity, kind, time, level FROM transfers WHERE run_id = ? ORDER BY time, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}
	for rows.Next() {
		var r TransferRecord
		var kind string
		if err := rows.Scan(&r.Edge, &r.Entity, &kind, &r.Time, &r.Level); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		r.Kind = TransferKind(kind)
		ft.Transfers = append(ft.Transfers, r)
	}
	rows.Close()

	rows, err = db.Query(`SELECT node, entity, kind, time FROM lifecycle WHERE run_id = ? ORDER BY time, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying lifecycle: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r LifecycleRecord
		var kind string
		if err := rows.Scan(&r.Node, &r.Entity, &kind, &r.Time); err != nil {
			return nil, fmt.Errorf("scanning lifecycle: %w", err)
		}
		r.Kind = LifecycleKind(kind)
		ft.Lifecycle = append(ft.Lifecycle, r)
	}
	return ft, rows.Err()
}
