package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"nfce/internal"
)

const (
	EmailFetched = "fetched"
	EmailScanned = "scanned"

	storedDateLayout = "2006-01-02"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create dir for %s", path)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: open %s", path)
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "storage: enable wal")
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "storage: init schema")
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  root TEXT NOT NULL,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL,
  documents INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  records INTEGER NOT NULL,
  output TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  seq INTEGER NOT NULL,
  sourceRef TEXT NOT NULL,
  kind TEXT,
  status TEXT NOT NULL,
  items INTEGER NOT NULL,
  excluded INTEGER NOT NULL,
  receiptDate TEXT,
  error TEXT,
  UNIQUE(runId, seq),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS purchases (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  seq INTEGER NOT NULL,
  receiptDate TEXT,
  product TEXT NOT NULL,
  quantity TEXT NOT NULL,
  unit TEXT,
  unitPrice TEXT NOT NULL,
  totalPrice TEXT NOT NULL,
  productCode TEXT,
  sourceRef TEXT NOT NULL,
  UNIQUE(runId, seq),
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_purchases_product ON purchases(product);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveRun stores a finished scan with its per-document reports and records
// in one transaction.
func (d *DB) SaveRun(run internal.RunRow, docs []internal.DocumentReport, records []internal.PurchaseRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return eris.Wrap(err, "storage: begin run")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO runs (id, root, startedAt, finishedAt, documents, failed, records, output)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.Root, run.StartedAt, run.FinishedAt, run.Documents, run.Failed, run.Records, run.Output); err != nil {
		return eris.Wrapf(err, "storage: insert run %s", run.ID)
	}

	docStmt, err := tx.Prepare(`
INSERT INTO documents (runId, seq, sourceRef, kind, status, items, excluded, receiptDate, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return eris.Wrap(err, "storage: prepare documents")
	}
	defer docStmt.Close()

	for i, doc := range docs {
		if _, err := docStmt.Exec(run.ID, i, doc.SourceReference, string(doc.Kind), string(doc.Status), doc.Items, doc.Excluded, formatStoredDate(doc.Date), doc.Error); err != nil {
			return eris.Wrapf(err, "storage: insert document %s", doc.SourceReference)
		}
	}

	recStmt, err := tx.Prepare(`
INSERT INTO purchases (runId, seq, receiptDate, product, quantity, unit, unitPrice, totalPrice, productCode, sourceRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return eris.Wrap(err, "storage: prepare purchases")
	}
	defer recStmt.Close()

	for i, r := range records {
		if _, err := recStmt.Exec(
			run.ID, i, formatStoredDate(r.Date), r.Product, r.Quantity.String(), r.Unit,
			r.UnitPrice.String(), r.TotalPrice.String(), r.ProductCode, r.SourceReference,
		); err != nil {
			return eris.Wrapf(err, "storage: insert purchase %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "storage: commit run")
	}
	return nil
}

func (d *DB) SetRunOutput(runID, output string) error {
	_, err := d.conn.Exec(`UPDATE runs SET output = ? WHERE id = ?`, output, runID)
	return err
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, root, startedAt, finishedAt, documents, failed, records, COALESCE(output, '')
FROM runs ORDER BY startedAt DESC, createdAt DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var r internal.RunRow
		if err := rows.Scan(&r.ID, &r.Root, &r.StartedAt, &r.FinishedAt, &r.Documents, &r.Failed, &r.Records, &r.Output); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) GetRun(id string) (*internal.RunRow, error) {
	var r internal.RunRow
	err := d.conn.QueryRow(`
SELECT id, root, startedAt, finishedAt, documents, failed, records, COALESCE(output, '')
FROM runs WHERE id = ?
`, id).Scan(&r.ID, &r.Root, &r.StartedAt, &r.FinishedAt, &r.Documents, &r.Failed, &r.Records, &r.Output)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRunRecords returns the records of a run in their original order.
func (d *DB) GetRunRecords(runID string) ([]internal.PurchaseRecord, error) {
	rows, err := d.conn.Query(`
SELECT COALESCE(receiptDate, ''), product, quantity, COALESCE(unit, ''), unitPrice, totalPrice, COALESCE(productCode, ''), sourceRef
FROM purchases WHERE runId = ? ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PurchaseRecord
	for rows.Next() {
		var r internal.PurchaseRecord
		var date, qty, unitPrice, total string
		if err := rows.Scan(&date, &r.Product, &qty, &r.Unit, &unitPrice, &total, &r.ProductCode, &r.SourceReference); err != nil {
			return nil, err
		}
		r.Date = parseStoredDate(date)
		if r.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, eris.Wrapf(err, "storage: quantity %q", qty)
		}
		if r.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, eris.Wrapf(err, "storage: unit price %q", unitPrice)
		}
		if r.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, eris.Wrapf(err, "storage: total price %q", total)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) GetRunDocuments(runID string) ([]internal.DocumentReport, error) {
	rows, err := d.conn.Query(`
SELECT sourceRef, COALESCE(kind, ''), status, items, excluded, COALESCE(receiptDate, ''), COALESCE(error, '')
FROM documents WHERE runId = ? ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentReport
	for rows.Next() {
		var doc internal.DocumentReport
		var kind, status, date string
		if err := rows.Scan(&doc.SourceReference, &kind, &status, &doc.Items, &doc.Excluded, &date, &doc.Error); err != nil {
			return nil, err
		}
		doc.Kind = internal.DocumentKind(kind)
		doc.Status = internal.DocumentStatus(status)
		doc.Date = parseStoredDate(date)
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, eris.Wrapf(err, "storage: upsert email %s", messageID)
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, eris.New("storage: failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, COALESCE(subject, ''), COALESCE(sender, ''), COALESCE(receivedAt, ''), hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, COALESCE(subject, ''), COALESCE(sender, ''), COALESCE(receivedAt, ''), hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func formatStoredDate(d internal.ReceiptDate) string {
	if !d.Known {
		return ""
	}
	return d.Time.Format(storedDateLayout)
}

func parseStoredDate(s string) internal.ReceiptDate {
	if s == "" {
		return internal.ReceiptDate{}
	}
	t, err := time.Parse(storedDateLayout, s)
	if err != nil {
		return internal.ReceiptDate{}
	}
	return internal.KnownDate(t)
}
