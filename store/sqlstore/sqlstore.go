/*
Package sqlstore provides a database/sql implementation of the storage
interfaces, for SQLite and PostgreSQL.

INTERFACES IMPLEMENTED:
  ledger.Store:      Movement persistence
  inventory.TxStore: Products, documents, status transitions, WithTx
  wages.Store:       Wage records

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on movements, document_lines,
    production_workers, wage_records or wage_items
  - documents.status (plus revocation stamp) is the only column ever
    updated, and only through a compare-and-set on the current status

KEY TABLES:
  products:           Catalog (no stock column)
  documents:          Purchase / sale / production headers
  document_lines:     Item, input and output lines
  production_workers: Worker assignments for production runs
  movements:          Immutable stock ledger
  wage_records:       Stage payroll headers
  wage_items:         Stage payroll rows

DECIMALS:
  Quantities and money are stored as TEXT and summed in Go with
  shopspring/decimal. SQL SUM() would go through floating point.

DIALECTS:
  SQLite (mattn/go-sqlite3): WAL, foreign keys on, single connection so
  that ":memory:" databases are shared and writes are serialized.
  PostgreSQL (lib/pq): "?" placeholders are rebound to "$n".

USAGE:
  store, err := sqlstore.OpenSQLite("./data/agro.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := inventory.NewService(store)

MIGRATION:
  Schema is auto-migrated on open with CREATE ... IF NOT EXISTS.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/ledger"
	"github.com/warp/agro-ledger/wages"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces.
type Store struct {
	conn
}

// conn runs statements against either the pool or an open transaction.
type conn struct {
	q       querier
	db      *sql.DB // nil inside a transaction
	dialect Dialect
}

var (
	_ inventory.TxStore = (*Store)(nil)
	_ wages.Store       = (*Store)(nil)
)

// OpenSQLite opens (and migrates) a SQLite database at path.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return New(db, DialectSQLite)
}

// OpenPostgres opens (and migrates) a PostgreSQL database.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db, DialectPostgres)
}

// New wraps an open database and migrates the schema.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{conn: conn{q: db, db: db, dialect: dialect}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		product_type TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		doc_date TEXT NOT NULL,
		counterparty TEXT,
		production_type TEXT,
		status TEXT NOT NULL,
		notes TEXT,
		total TEXT NOT NULL,
		output_total TEXT NOT NULL,
		revoke_reason TEXT,
		revoked_by TEXT,
		revoked_at TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_kind_date
		ON documents(kind, doc_date);
	CREATE INDEX IF NOT EXISTS idx_documents_status
		ON documents(status);

	CREATE TABLE IF NOT EXISTS document_lines (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		role TEXT NOT NULL,
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		total TEXT NOT NULL,
		UNIQUE(document_id, role, line_no)
	);

	CREATE TABLE IF NOT EXISTS production_workers (
		document_id TEXT NOT NULL REFERENCES documents(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		role TEXT,
		PRIMARY KEY (document_id, position)
	);

	-- Stock ledger (append-only)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		delta TEXT NOT NULL,
		document_id TEXT NOT NULL REFERENCES documents(id),
		source_kind TEXT NOT NULL,
		line_id TEXT,
		idempotency_key TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_product
		ON movements(product_id);
	CREATE INDEX IF NOT EXISTS idx_movements_document
		ON movements(document_id);

	CREATE TABLE IF NOT EXISTS wage_records (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		record_date TEXT NOT NULL,
		notes TEXT,
		rate_a TEXT NOT NULL,
		rate_b TEXT NOT NULL,
		total TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wage_records_stage_date
		ON wage_records(stage, record_date);

	CREATE TABLE IF NOT EXISTS wage_items (
		record_id TEXT NOT NULL REFERENCES wage_records(id),
		line_no INTEGER NOT NULL,
		name TEXT NOT NULL,
		qty_a TEXT NOT NULL,
		qty_b TEXT NOT NULL,
		rate_a TEXT NOT NULL,
		rate_b TEXT NOT NULL,
		total TEXT NOT NULL,
		PRIMARY KEY (record_id, line_no)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	return s.conn.atomic(ctx, func(c *conn) error { return fn(c) })
}

// atomic runs fn in a transaction, reusing the current one if c already
// belongs to a transaction.
func (c *conn) atomic(ctx context.Context, fn func(*conn) error) error {
	if c.db == nil {
		return fn(c)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&conn{q: tx, dialect: c.dialect}); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (c *conn) rebind(query string) string {
	if c.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// MOVEMENTS (ledger.Store)
// =============================================================================

func (c *conn) AppendMovements(ctx context.Context, mvs []ledger.Movement) error {
	if len(mvs) == 0 {
		return nil
	}
	return c.atomic(ctx, func(c *conn) error {
		checked := make(map[ledger.DocumentID]bool)
		for _, mv := range mvs {
			if checked[mv.DocumentID] {
				continue
			}
			checked[mv.DocumentID] = true
			var n int
			if err := c.queryRow(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", mv.DocumentID).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", ledger.ErrSourceNotFound, mv.DocumentID)
			}
		}

		for _, mv := range mvs {
			_, err := c.exec(ctx, `
				INSERT INTO movements
				(id, product_id, delta, document_id, source_kind, line_id, idempotency_key, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				mv.ID, mv.ProductID, mv.Delta.String(), mv.DocumentID, mv.Kind,
				nullString(mv.LineID), mv.Key(), formatTime(mv.CreatedAt),
			)
			if err != nil {
				if isUniqueViolation(err) {
					return ledger.ErrDuplicateMovement
				}
				return fmt.Errorf("failed to append movement: %w", err)
			}
		}
		return nil
	})
}

func (c *conn) LoadMovements(ctx context.Context, f ledger.MovementFilter) ([]ledger.Entry, error) {
	query := `
		SELECT m.id, m.product_id, m.delta, m.document_id, m.source_kind, m.line_id,
		       m.idempotency_key, m.created_at, d.status
		FROM movements m
		JOIN documents d ON d.id = m.document_id
		WHERE 1 = 1`
	var args []any
	if len(f.ProductIDs) > 0 {
		query += " AND m.product_id IN (" + placeholders(len(f.ProductIDs)) + ")"
		for _, p := range f.ProductIDs {
			args = append(args, p)
		}
	}
	if f.DocumentID != "" {
		query += " AND m.document_id = ?"
		args = append(args, f.DocumentID)
	}
	query += " ORDER BY m.created_at ASC, m.id ASC"

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e         ledger.Entry
			delta     string
			lineID    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &delta, &e.DocumentID, &e.Kind, &lineID,
			&e.IdempotencyKey, &createdAt, &e.SourceStatus); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		if e.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("corrupt delta on movement %s: %w", e.ID, err)
		}
		e.LineID = lineID.String
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (c *conn) SaveProduct(ctx context.Context, p inventory.Product) error {
	_, err := c.exec(ctx, `
		INSERT INTO products (id, name, unit, product_type, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			product_type = excluded.product_type,
			active = excluded.active`,
		p.ID, p.Name, p.Unit, p.Type, boolInt(p.Active), formatTime(p.CreatedAt),
	)
	return err
}

func (c *conn) GetProduct(ctx context.Context, id ledger.ProductID) (*inventory.Product, error) {
	products, err := c.queryProducts(ctx,
		"SELECT id, name, unit, product_type, active, created_at FROM products WHERE id = ?", id)
	if err != nil || len(products) == 0 {
		return nil, err
	}
	return &products[0], nil
}

func (c *conn) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	return c.queryProducts(ctx,
		"SELECT id, name, unit, product_type, active, created_at FROM products ORDER BY name")
}

func (c *conn) queryProducts(ctx context.Context, query string, args ...any) ([]inventory.Product, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []inventory.Product
	for rows.Next() {
		var (
			p         inventory.Product
			active    int
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.Type, &active, &createdAt); err != nil {
			return nil, err
		}
		p.Active = active != 0
		p.CreatedAt = parseTime(createdAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (c *conn) InsertDocument(ctx context.Context, d inventory.Document) error {
	return c.atomic(ctx, func(c *conn) error {
		_, err := c.exec(ctx, `
			INSERT INTO documents
			(id, kind, doc_date, counterparty, production_type, status, notes, total, output_total,
			 created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Kind, formatTime(d.Date), nullString(d.Counterparty), nullString(d.ProductionType),
			d.Status, nullString(d.Notes), d.Total.String(), d.OutputTotal.String(),
			nullString(d.CreatedBy), formatTime(d.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}

		for _, l := range d.Lines {
			_, err := c.exec(ctx, `
				INSERT INTO document_lines
				(id, document_id, role, line_no, product_id, quantity, unit_price, total)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				l.ID, d.ID, l.Role, l.LineNo, l.ProductID,
				l.Quantity.String(), l.UnitPrice.String(), l.Total.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert document line: %w", err)
			}
		}

		for i, w := range d.Workers {
			_, err := c.exec(ctx,
				"INSERT INTO production_workers (document_id, position, name, role) VALUES (?, ?, ?, ?)",
				d.ID, i+1, w.Name, nullString(w.Role),
			)
			if err != nil {
				return fmt.Errorf("failed to insert worker: %w", err)
			}
		}
		return nil
	})
}

const documentColumns = `
	id, kind, doc_date, counterparty, production_type, status, notes, total, output_total,
	revoke_reason, revoked_by, revoked_at, created_by, created_at`

func (c *conn) GetDocument(ctx context.Context, id ledger.DocumentID) (*inventory.Document, error) {
	docs, err := c.queryDocuments(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

func (c *conn) ListDocuments(ctx context.Context, f inventory.DocumentFilter) ([]inventory.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE 1 = 1"
	var args []any
	if f.Kind != "" {
		query += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.From != nil {
		query += " AND doc_date >= ?"
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += " AND doc_date <= ?"
		args = append(args, formatTime(*f.To))
	}
	query += " ORDER BY doc_date ASC, created_at ASC"
	return c.queryDocuments(ctx, query, args...)
}

func (c *conn) queryDocuments(ctx context.Context, query string, args ...any) ([]inventory.Document, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	var docs []inventory.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		docs = append(docs, d)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Children are loaded after the header cursor is closed: SQLite runs on
	// a single connection.
	for i := range docs {
		if err := c.loadChildren(ctx, &docs[i]); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func scanDocument(rows *sql.Rows) (inventory.Document, error) {
	var (
		d                        inventory.Document
		docDate, createdAt       string
		counterparty, prodType   sql.NullString
		notes, createdBy         sql.NullString
		total, outputTotal       string
		reason, revokedBy, revAt sql.NullString
	)
	err := rows.Scan(&d.ID, &d.Kind, &docDate, &counterparty, &prodType, &d.Status, &notes,
		&total, &outputTotal, &reason, &revokedBy, &revAt, &createdBy, &createdAt)
	if err != nil {
		return d, fmt.Errorf("failed to scan document: %w", err)
	}

	d.Date = parseTime(docDate)
	d.Counterparty = counterparty.String
	d.ProductionType = prodType.String
	d.Notes = notes.String
	d.Total = parseDecimal(total)
	d.OutputTotal = parseDecimal(outputTotal)
	d.CreatedBy = createdBy.String
	d.CreatedAt = parseTime(createdAt)
	if revAt.Valid {
		d.Revocation = &inventory.Revocation{
			Reason: reason.String,
			Actor:  revokedBy.String,
			At:     parseTime(revAt.String),
		}
	}
	return d, nil
}

func (c *conn) loadChildren(ctx context.Context, d *inventory.Document) error {
	rows, err := c.query(ctx, `
		SELECT id, role, line_no, product_id, quantity, unit_price, total
		FROM document_lines
		WHERE document_id = ?
		ORDER BY CASE role WHEN 'output' THEN 1 ELSE 0 END, line_no`, d.ID)
	if err != nil {
		return fmt.Errorf("failed to query document lines: %w", err)
	}
	for rows.Next() {
		var (
			l                 inventory.Line
			qty, price, total string
		)
		if err := rows.Scan(&l.ID, &l.Role, &l.LineNo, &l.ProductID, &qty, &price, &total); err != nil {
			rows.Close()
			return err
		}
		l.Quantity = parseDecimal(qty)
		l.UnitPrice = parseDecimal(price)
		l.Total = parseDecimal(total)
		d.Lines = append(d.Lines, l)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return err
	}

	rows, err = c.query(ctx,
		"SELECT name, role FROM production_workers WHERE document_id = ? ORDER BY position", d.ID)
	if err != nil {
		return fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			w    inventory.WorkerAssignment
			role sql.NullString
		)
		if err := rows.Scan(&w.Name, &role); err != nil {
			return err
		}
		w.Role = role.String
		d.Workers = append(d.Workers, w)
	}
	return rows.Err()
}

func (c *conn) TransitionStatus(ctx context.Context, id ledger.DocumentID, from, to ledger.Status, rev *inventory.Revocation) error {
	var (
		res sql.Result
		err error
	)
	if rev != nil {
		res, err = c.exec(ctx, `
			UPDATE documents
			SET status = ?, revoke_reason = ?, revoked_by = ?, revoked_at = ?
			WHERE id = ? AND status = ?`,
			to, nullString(rev.Reason), nullString(rev.Actor), formatTime(rev.At), id, from)
	} else {
		res, err = c.exec(ctx, "UPDATE documents SET status = ? WHERE id = ? AND status = ?", to, id, from)
	}
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current ledger.Status
	err = c.queryRow(ctx, "SELECT status FROM documents WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.ErrDocumentNotFound
	}
	if err != nil {
		return err
	}
	return &inventory.InvalidStateError{DocumentID: id, Current: current, Wanted: to}
}

// =============================================================================
// WAGE RECORDS (wages.Store)
// =============================================================================

func (c *conn) SaveWageRecord(ctx context.Context, rec wages.Record) error {
	return c.atomic(ctx, func(c *conn) error {
		_, err := c.exec(ctx, `
			INSERT INTO wage_records
			(id, stage, record_date, notes, rate_a, rate_b, total, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Stage, formatTime(rec.Date), nullString(rec.Notes),
			rec.RateA.String(), rec.RateB.String(), rec.Total.String(),
			nullString(rec.CreatedBy), formatTime(rec.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert wage record: %w", err)
		}
		for _, it := range rec.Items {
			_, err := c.exec(ctx, `
				INSERT INTO wage_items
				(record_id, line_no, name, qty_a, qty_b, rate_a, rate_b, total)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, it.LineNo, it.Name, it.QtyA.String(), it.QtyB.String(),
				it.RateA.String(), it.RateB.String(), it.Total.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert wage item: %w", err)
			}
		}
		return nil
	})
}

const wageColumns = "id, stage, record_date, notes, rate_a, rate_b, total, created_by, created_at"

func (c *conn) GetWageRecord(ctx context.Context, id wages.RecordID) (*wages.Record, error) {
	recs, err := c.queryWageRecords(ctx, "SELECT "+wageColumns+" FROM wage_records WHERE id = ?", id)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (c *conn) ListWageRecords(ctx context.Context, f wages.RecordFilter) ([]wages.Record, error) {
	query := "SELECT " + wageColumns + " FROM wage_records WHERE 1 = 1"
	var args []any
	if f.Stage != "" {
		query += " AND stage = ?"
		args = append(args, f.Stage)
	}
	if f.From != nil {
		query += " AND record_date >= ?"
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += " AND record_date <= ?"
		args = append(args, formatTime(*f.To))
	}
	query += " ORDER BY record_date ASC, created_at ASC"
	return c.queryWageRecords(ctx, query, args...)
}

func (c *conn) queryWageRecords(ctx context.Context, query string, args ...any) ([]wages.Record, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wage records: %w", err)
	}

	var recs []wages.Record
	for rows.Next() {
		var (
			r                   wages.Record
			date, createdAt     string
			notes, createdBy    sql.NullString
			rateA, rateB, total string
		)
		if err := rows.Scan(&r.ID, &r.Stage, &date, &notes, &rateA, &rateB, &total, &createdBy, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		r.Date = parseTime(date)
		r.Notes = notes.String
		r.RateA = parseDecimal(rateA)
		r.RateB = parseDecimal(rateB)
		r.Total = parseDecimal(total)
		r.CreatedBy = createdBy.String
		r.CreatedAt = parseTime(createdAt)
		recs = append(recs, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range recs {
		if err := c.loadWageItems(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (c *conn) loadWageItems(ctx context.Context, r *wages.Record) error {
	rows, err := c.query(ctx, `
		SELECT line_no, name, qty_a, qty_b, rate_a, rate_b, total
		FROM wage_items WHERE record_id = ? ORDER BY line_no`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query wage items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it                              wages.Item
			qtyA, qtyB, rateA, rateB, total string
		)
		if err := rows.Scan(&it.LineNo, &it.Name, &qtyA, &qtyB, &rateA, &rateB, &total); err != nil {
			return err
		}
		it.QtyA = parseDecimal(qtyA)
		it.QtyB = parseDecimal(qtyB)
		it.RateA = parseDecimal(rateA)
		it.RateB = parseDecimal(rateB)
		it.Total = parseDecimal(total)
		r.Items = append(r.Items, it)
	}
	return rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is fixed width so that TEXT comparison orders like time.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// parseDecimal reads a stored decimal. Values are written by this package,
// so a parse failure means a hand-edited row and is reported as zero.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}
