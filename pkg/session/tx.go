package session

import (
	"context"
	"database/sql"
)

// Tx is a transaction a session can execute within. Commit and Rollback
// make it inactive.
type Tx struct {
	tx     *sql.Tx
	active bool
}

// BeginTx starts a transaction on conn.
func BeginTx(ctx context.Context, conn *sql.Conn, opts *sql.TxOptions) (*Tx, error) {
	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, active: true}, nil
}

// IsActive reports whether the transaction can still run statements.
func (t *Tx) IsActive() bool {
	return t != nil && t.active
}

func (t *Tx) Commit() error {
	t.active = false
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	t.active = false
	return t.tx.Rollback()
}
