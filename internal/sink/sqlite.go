package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/0xledger/fenbook/internal/order"
)

const schema = `
CREATE TABLE IF NOT EXISTS orderbook_event (
	ticker                TEXT    NOT NULL,
	event_date            TEXT    NOT NULL,
	ts                    INTEGER NOT NULL,
	event_id              INTEGER NOT NULL,
	event_type            TEXT    NOT NULL,
	order_id              TEXT    NOT NULL,
	order_quantity        INTEGER,
	order_price           TEXT,
	counterpart_id        TEXT,
	counterpart_quantity  INTEGER,
	counterpart_price     TEXT,
	PRIMARY KEY (ticker, event_date, ts, event_id)
);
`

const insertSQL = `INSERT INTO orderbook_event
	(ticker, event_date, ts, event_id, event_type, order_id, order_quantity, order_price, counterpart_id, counterpart_quantity, counterpart_price)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// eventTypeString maps an Event to the column value used in the original
// Rust sink's migration (buy/sell/fill/cancel); State and Rejected never
// reach this function because Filter drops them first.
func eventTypeString(ev order.Event) string {
	switch ev.Kind {
	case order.EventAccepted:
		return ev.Order.Side.String()
	case order.EventFilled:
		return "fill"
	case order.EventCanceled:
		return "cancel"
	default:
		return "unknown"
	}
}

// SQLite persists events to a single-file SQLite database in WAL mode, one
// connection at a time, mirroring the durability posture of a
// single-writer event log: every Commit is one transaction, committed or
// rolled back as a unit.
type SQLite struct {
	db *sql.DB

	// nextEventID is the freshly-allocated-per-row id required by the
	// table's primary key. Commit is only ever called from the gateway's
	// single dispatch goroutine, so no additional locking protects it.
	nextEventID int64
}

// OpenSQLite opens (creating if missing) the database at dsn, sets WAL
// journaling and a single-connection pool, runs the schema migration, and
// resumes the event-id counter from the highest id already on disk.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sink: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: set WAL journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: set synchronous mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: run migration: %w", err)
	}

	var maxID sql.NullInt64
	if err := db.QueryRow("SELECT MAX(event_id) FROM orderbook_event").Scan(&maxID); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: resume event id counter: %w", err)
	}

	return &SQLite{db: db, nextEventID: maxID.Int64}, nil
}

// Commit writes events for ticker inside a single transaction.
func (s *SQLite) Commit(ctx context.Context, ticker string, events []order.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sink: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("sink: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		s.nextEventID++
		if err := insertOne(ctx, stmt, ticker, s.nextEventID, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sink: commit transaction: %w", err)
	}

	log.Debug().Str("ticker", ticker).Int("events", len(events)).Msg("sink: committed event batch")
	return nil
}

func insertOne(ctx context.Context, stmt *sql.Stmt, ticker string, eventID int64, ev order.Event) error {
	var (
		orderID                      string
		orderQty, counterpartQty     sql.NullInt64
		orderPrice, counterpartPrice sql.NullString
		counterpartID                sql.NullString
	)

	switch ev.Kind {
	case order.EventAccepted:
		orderID = ev.Order.ID.String()
		orderQty = sql.NullInt64{Int64: int64(ev.Order.Quantity), Valid: true}
		orderPrice = sql.NullString{String: ev.Order.Price.String(), Valid: true}
	case order.EventFilled:
		orderID = ev.Order.ID.String()
		orderQty = sql.NullInt64{Int64: int64(ev.Order.Quantity), Valid: true}
		orderPrice = sql.NullString{String: ev.Order.Price.String(), Valid: true}
		counterpartID = sql.NullString{String: ev.Counterpart.ID.String(), Valid: true}
		counterpartQty = sql.NullInt64{Int64: int64(ev.Counterpart.Quantity), Valid: true}
		counterpartPrice = sql.NullString{String: ev.Counterpart.Price.String(), Valid: true}
	case order.EventCanceled:
		orderID = ev.CanceledID
	default:
		return fmt.Errorf("sink: unexpected event kind %v reached sqlite sink", ev.Kind)
	}

	ts := ev.Timestamp.UTC()
	_, err := stmt.ExecContext(ctx,
		ticker,
		ts.Format("2006-01-02"),
		ts.UnixMilli(),
		eventID,
		eventTypeString(ev),
		orderID,
		orderQty,
		orderPrice,
		counterpartID,
		counterpartQty,
		counterpartPrice,
	)
	if err != nil {
		return fmt.Errorf("sink: insert event row: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// MaxEventIDForTesting reports the highest event_id persisted so far, letting
// tests confirm the counter survives a close/reopen cycle without reaching
// into the database file themselves.
func (s *SQLite) MaxEventIDForTesting(ctx context.Context) (int64, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(event_id) FROM orderbook_event").Scan(&maxID); err != nil {
		return 0, err
	}
	return maxID.Int64, nil
}
