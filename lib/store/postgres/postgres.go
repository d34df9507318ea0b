// Package postgres implements the interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq" // also loads the postgres driver used by database/sql

	"github.com/tarancss/qgw/lib/store"
)

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection', creating the receipt and
// audit tables when missing.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	p := &Postgres{db: db}
	if err = p.migrate(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Postgres) migrate() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS receipts (
		id SERIAL PRIMARY KEY,
		net TEXT NOT NULL,
		hash TEXT NOT NULL,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		value TEXT NOT NULL,
		fee TEXT NOT NULL,
		status SMALLINT NOT NULL,
		ts BIGINT NOT NULL,
		UNIQUE (net, hash)
	)`)
	if err != nil {
		return fmt.Errorf("cannot create receipts table: %w", err)
	}

	_, err = p.db.Exec(`CREATE TABLE IF NOT EXISTS session_audit (
		id SERIAL PRIMARY KEY,
		net TEXT NOT NULL,
		session TEXT NOT NULL,
		address TEXT NOT NULL,
		action TEXT NOT NULL,
		ts BIGINT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("cannot create session_audit table: %w", err)
	}

	return nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// SaveReceipt upserts a transfer receipt keyed by (net, hash) so a pending receipt can be settled later.
func (p *Postgres) SaveReceipt(net string, r store.Receipt) ([]byte, error) {
	var id int64

	err := p.db.QueryRow(`INSERT INTO receipts (net, hash, sender, recipient, value, fee, status, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (net, hash) DO UPDATE SET status = $7, fee = $6
		RETURNING id`,
		net, r.Hash, r.From, r.To, r.Value, r.Fee, r.Status, r.TS).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("could not insert receipt in db: %w", err)
	}

	return []byte(fmt.Sprintf("%d", id)), nil
}

// GetReceipts returns the receipts persisted for the networks in the net slice, or all networks when empty.
func (p *Postgres) GetReceipts(net []string) ([]store.NetReceipts, error) {
	query := `SELECT net, hash, sender, recipient, value, fee, status, ts FROM receipts`

	var args []interface{}

	if len(net) > 0 {
		query += ` WHERE net = ANY($1)`

		args = append(args, pq.Array(net))
	}

	rows, err := p.db.Query(query+` ORDER BY ts DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("could not get receipts from db: %w", err)
	}
	defer rows.Close()

	byNet := map[string]*store.NetReceipts{}

	var order []string

	for rows.Next() {
		var n string

		var r store.Receipt

		if err = rows.Scan(&n, &r.Hash, &r.From, &r.To, &r.Value, &r.Fee, &r.Status, &r.TS); err != nil {
			return nil, fmt.Errorf("could not scan receipt: %w", err)
		}

		nr, ok := byNet[n]
		if !ok {
			nr = &store.NetReceipts{Net: n}
			byNet[n] = nr

			order = append(order, n)
		}

		nr.Receipts = append(nr.Receipts, r)
	}

	rcpts := make([]store.NetReceipts, 0, len(order))
	for _, n := range order {
		rcpts = append(rcpts, *byNet[n])
	}

	return rcpts, rows.Err()
}

// SaveAudit appends a session lifecycle event.
func (p *Postgres) SaveAudit(net string, ev store.AuditEvent) error {
	_, err := p.db.Exec(`INSERT INTO session_audit (net, session, address, action, ts) VALUES ($1, $2, $3, $4, $5)`,
		net, ev.Session, ev.Address, ev.Action, ev.TS)
	if err != nil {
		return fmt.Errorf("could not insert audit event in db: %w", err)
	}

	return nil
}
