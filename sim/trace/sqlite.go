package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// SQLiteWriter persists a SimulationTrace into a SQLite database with one
// table per record kind. Records are buffered and inserted in batches, one
// transaction per batch.
type SQLiteWriter struct {
	*sql.DB

	path      string
	batchSize int

	admissionStmt *sql.Stmt
	deliveryStmt  *sql.Stmt
	dropStmt      *sql.Stmt

	admissions []AdmissionRecord
	deliveries []DeliveryRecord
	drops      []DropRecord

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteWriter creates a writer for path. An empty path picks a unique
// qjump_trace_<xid>.sqlite3 in the working directory. Buffered records are
// flushed on atexit.Exit.
func NewSQLiteWriter(path string) *SQLiteWriter {
	if path == "" {
		path = "qjump_trace_" + xid.New().String() + ".sqlite3"
	}
	w := &SQLiteWriter{
		path:      path,
		batchSize: 100000,
	}
	atexit.Register(func() {
		if err := w.Close(); err != nil {
			logrus.Errorf("closing trace database %s: %v", w.path, err)
		}
	})
	return w
}

// Path returns the database file name.
func (w *SQLiteWriter) Path() string {
	return w.path
}

// Init creates the database file and its tables. The file must not exist.
func (w *SQLiteWriter) Init() error {
	if _, err := os.Stat(w.path); err == nil {
		return fmt.Errorf("trace database %s already exists", w.path)
	}
	db, err := sql.Open("sqlite3", w.path)
	if err != nil {
		return fmt.Errorf("opening trace database: %w", err)
	}
	w.DB = db
	if err := w.createTables(); err != nil {
		return err
	}
	return w.prepareStatements()
}

func (w *SQLiteWriter) createTables() error {
	stmts := []string{
		`create table admissions
		(
			packet_id integer not null,
			host      integer not null,
			epoch     integer not null,
			priority  integer not null,
			length    integer not null,
			admitted  integer not null,
			reason    varchar(100) default ''
		);`,
		`create index admissions_packet_id_index on admissions (packet_id);`,
		`create table deliveries
		(
			packet_id       integer not null,
			src             integer not null,
			dst             integer not null,
			priority        integer not null,
			length          integer not null,
			epoch           integer not null,
			created_ns      integer not null,
			delivered_ns    integer not null,
			rack            integer not null,
			hops            integer not null,
			via_aggregation integer not null
		);`,
		`create index deliveries_packet_id_index on deliveries (packet_id);`,
		`create table drops
		(
			packet_id integer not null,
			dst       integer not null,
			priority  integer not null,
			hops      integer not null,
			reason    varchar(100) default ''
		);`,
	}
	for _, s := range stmts {
		if _, err := w.Exec(s); err != nil {
			return fmt.Errorf("creating trace tables: %w", err)
		}
	}
	return nil
}

func (w *SQLiteWriter) prepareStatements() error {
	var err error
	w.admissionStmt, err = w.Prepare(`insert into admissions values (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing admission insert: %w", err)
	}
	w.deliveryStmt, err = w.Prepare(`insert into deliveries values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing delivery insert: %w", err)
	}
	w.dropStmt, err = w.Prepare(`insert into drops values (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing drop insert: %w", err)
	}
	return nil
}

// WriteTrace buffers every record of st, flushing whenever a batch fills.
func (w *SQLiteWriter) WriteTrace(st *SimulationTrace) error {
	if w.DB == nil {
		return errors.New("trace database not initialized")
	}
	for _, r := range st.Admissions {
		w.admissions = append(w.admissions, r)
		if len(w.admissions) >= w.batchSize {
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
	for _, r := range st.Deliveries {
		w.deliveries = append(w.deliveries, r)
		if len(w.deliveries) >= w.batchSize {
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
	for _, r := range st.Drops {
		w.drops = append(w.drops, r)
	}
	return w.Flush()
}

// Flush inserts all buffered records in one transaction.
func (w *SQLiteWriter) Flush() error {
	if w.DB == nil {
		return nil
	}
	if len(w.admissions) == 0 && len(w.deliveries) == 0 && len(w.drops) == 0 {
		return nil
	}
	tx, err := w.Begin()
	if err != nil {
		return fmt.Errorf("beginning trace transaction: %w", err)
	}
	if err := w.insertBuffered(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trace transaction: %w", err)
	}
	w.admissions = nil
	w.deliveries = nil
	w.drops = nil
	return nil
}

func (w *SQLiteWriter) insertBuffered(tx *sql.Tx) error {
	admission := tx.Stmt(w.admissionStmt)
	for _, r := range w.admissions {
		if _, err := admission.Exec(r.PacketID, r.Host, r.Epoch, r.Priority, r.Length, r.Admitted, r.Reason); err != nil {
			return fmt.Errorf("inserting admission of packet %d: %w", r.PacketID, err)
		}
	}
	delivery := tx.Stmt(w.deliveryStmt)
	for _, r := range w.deliveries {
		if _, err := delivery.Exec(r.PacketID, r.Src, r.Dst, r.Priority, r.Length, r.Epoch,
			int64(r.CreatedAt), int64(r.DeliveredAt), r.Rack, r.Hops, r.ViaAggregation); err != nil {
			return fmt.Errorf("inserting delivery of packet %d: %w", r.PacketID, err)
		}
	}
	drop := tx.Stmt(w.dropStmt)
	for _, r := range w.drops {
		if _, err := drop.Exec(r.PacketID, r.Dst, r.Priority, r.Hops, r.Reason); err != nil {
			return fmt.Errorf("inserting drop of packet %d: %w", r.PacketID, err)
		}
	}
	return nil
}

// Close flushes pending records and closes the database. Safe to call more than once.
func (w *SQLiteWriter) Close() error {
	w.closeOnce.Do(func() {
		if w.DB == nil {
			return
		}
		if err := w.Flush(); err != nil {
			w.closeErr = err
		}
		if err := w.DB.Close(); err != nil && w.closeErr == nil {
			w.closeErr = err
		}
	})
	return w.closeErr
}
