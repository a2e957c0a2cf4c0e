// Package dbtest hands service tests a *sql.DB whose transactions open and
// commit without touching a real database. Queries are not supported; the
// repositories are mocked in those tests, so nothing ever reaches the driver.
package dbtest

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
)

type noopDriver struct{}
type noopConn struct{}
type noopTx struct{}

func (noopDriver) Open(string) (driver.Conn, error) { return noopConn{}, nil }

func (noopConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("dbtest: statements are not supported")
}
func (noopConn) Close() error              { return nil }
func (noopConn) Begin() (driver.Tx, error) { return noopTx{}, nil }

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

var register sync.Once

func New(t *testing.T) *sql.DB {
	t.Helper()
	register.Do(func() { sql.Register("dbtest", noopDriver{}) })

	db, err := sql.Open("dbtest", "")
	if err != nil {
		t.Fatalf("open dbtest: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
