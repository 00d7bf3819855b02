package services

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

// Service tests exercise transaction control (begin/commit/rollback)
// against hand-mocked stores; the stores never touch the connection,
// so a driver that only supports transactions is enough.

type txOnlyDriver struct{}

func (txOnlyDriver) Open(name string) (driver.Conn, error) {
	return &txOnlyConn{failCommit: name == "failcommit"}, nil
}

type txOnlyConn struct {
	failCommit bool
}

func (*txOnlyConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements are not supported")
}

func (*txOnlyConn) Close() error { return nil }

func (c *txOnlyConn) Begin() (driver.Tx, error) { return txOnlyTx{failCommit: c.failCommit}, nil }

type txOnlyTx struct {
	failCommit bool
}

func (tx txOnlyTx) Commit() error {
	if tx.failCommit {
		return errors.New("connection reset during commit")
	}
	return nil
}

func (txOnlyTx) Rollback() error { return nil }

func init() {
	sql.Register("txonly", txOnlyDriver{})
}

func openTestDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("txonly", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestDB(t *testing.T) *sql.DB {
	return openTestDB(t, "")
}

// newCommitFailingDB returns a database whose transactions always fail
// at commit time.
func newCommitFailingDB(t *testing.T) *sql.DB {
	return openTestDB(t, "failcommit")
}
