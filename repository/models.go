package repository

import (
	"context"
	"time"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountModel is the Bun model for accounts. It satisfies auth.Account.
type AccountModel struct {
	bun.BaseModel `bun:"table:accounts"`

	ID           int64     `bun:"id,pk,autoincrement"`
	EmailAddress string    `bun:"email,notnull,unique"`
	Hash         string    `bun:"password_hash,notnull"`
	Stamp        uuid.UUID `bun:"security_stamp,notnull,type:uuid"`
	TwoFactor    bool      `bun:"two_factor_enabled,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

var _ auth.Account = (*AccountModel)(nil)

func (m *AccountModel) AccountID() int64 { return m.ID }

func (m *AccountModel) Email() string { return m.EmailAddress }

func (m *AccountModel) PasswordHash() string { return m.Hash }

func (m *AccountModel) SecurityStamp() auth.SecurityStamp { return auth.SecurityStamp(m.Stamp) }

func (m *AccountModel) TwoFactorEnabled() bool { return m.TwoFactor }

// RoleModel is a named role
type RoleModel struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

// AccountRoleModel links accounts to roles
type AccountRoleModel struct {
	bun.BaseModel `bun:"table:account_roles"`

	AccountID int64 `bun:"account_id,pk"`
	RoleID    int64 `bun:"role_id,pk"`
}

// RoleClaimModel is a claim granted to every holder of a role
type RoleClaimModel struct {
	bun.BaseModel `bun:"table:role_claims"`

	ID     int64  `bun:"id,pk,autoincrement"`
	RoleID int64  `bun:"role_id,notnull"`
	Type   string `bun:"claim_type,notnull"`
	Value  string `bun:"claim_value,notnull"`
}

// AccountClaimModel is a claim attached directly to an account
type AccountClaimModel struct {
	bun.BaseModel `bun:"table:account_claims"`

	ID        int64  `bun:"id,pk,autoincrement"`
	AccountID int64  `bun:"account_id,notnull"`
	Type      string `bun:"claim_type,notnull"`
	Value     string `bun:"claim_value,notnull"`
}

// Migrate creates every table used by the package if it does not exist
func Migrate(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*AccountModel)(nil),
		(*RoleModel)(nil),
		(*AccountRoleModel)(nil),
		(*RoleClaimModel)(nil),
		(*AccountClaimModel)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create table")
		}
	}
	return nil
}
