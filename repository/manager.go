package repository

import (
	"context"
	"database/sql"
	"log"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Manager groups the repositories that share one database handle
type Manager struct {
	db       *bun.DB
	accounts *Accounts
}

// NewRepositoryManager wires the repositories against db
func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		accounts: NewAccounts(db),
	}
}

// OpenSQLite opens dsn through sqliteshim, which picks the cgo or the pure
// Go driver depending on the build.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized", errors.CategoryInternal)
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized", errors.CategoryInternal)
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Migrate creates the tables if they are missing
func (m *Manager) Migrate(ctx context.Context) error {
	return Migrate(ctx, m.db)
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) Accounts() *Accounts {
	return m.accounts
}
