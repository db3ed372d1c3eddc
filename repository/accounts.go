package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts implements the account, role and claim lookups the auth package
// consumes, plus the writes that rotate security stamps.
type Accounts struct {
	db *bun.DB
}

var (
	_ auth.AccountStore      = (*Accounts)(nil)
	_ auth.RoleClaimLookup   = (*Accounts)(nil)
	_ auth.CredentialStore   = (*Accounts)(nil)
	_ auth.PasswordHashStore = (*Accounts)(nil)
)

// NewAccounts creates a new repository.
func NewAccounts(db *bun.DB) *Accounts {
	return &Accounts{db: db}
}

// GetAccount implements auth.AccountLookup.
func (r *Accounts) GetAccount(ctx context.Context, accountID int64) (auth.Account, error) {
	model, err := r.getModel(ctx, r.db, accountID)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// FindAccountByEmail implements auth.AccountFinder. Emails compare case
// insensitively.
func (r *Accounts) FindAccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	var model AccountModel
	err := r.db.NewSelect().
		Model(&model).
		Where("email = ?", normalizeEmail(email)).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "failed to find account by email")
	}
	return &model, nil
}

// Create inserts an account with a fresh security stamp. The email is stored
// lower cased, so the unique constraint is case insensitive.
func (r *Accounts) Create(ctx context.Context, email, passwordHash string, twoFactor bool) (*AccountModel, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errEmailRequired()
	}

	now := time.Now().UTC()
	model := &AccountModel{
		EmailAddress: email,
		Hash:         passwordHash,
		Stamp:        uuid.New(),
		TwoFactor:    twoFactor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create account").
			WithCode(errors.CodeConflict)
	}
	return model, nil
}

// UpdatePasswordHash implements auth.CredentialStore. The stamp rotates in
// the same statement.
func (r *Accounts) UpdatePasswordHash(ctx context.Context, accountID int64, hash string) (auth.SecurityStamp, error) {
	return r.updateWithStamp(ctx, r.db, accountID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("password_hash = ?", hash)
	})
}

// ReplacePasswordHash implements auth.PasswordHashStore. The stamp is kept.
func (r *Accounts) ReplacePasswordHash(ctx context.Context, accountID int64, hash string) error {
	res, err := r.db.NewUpdate().
		Model((*AccountModel)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", accountID).
		Exec(ctx)
	return checkAffected(res, err, "failed to replace password hash")
}

// UpdateEmail changes the login email and rotates the stamp
func (r *Accounts) UpdateEmail(ctx context.Context, accountID int64, email string) (auth.SecurityStamp, error) {
	email = normalizeEmail(email)
	if email == "" {
		return auth.ZeroStamp, errEmailRequired()
	}
	return r.updateWithStamp(ctx, r.db, accountID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("email = ?", email)
	})
}

// SetTwoFactorEnabled toggles the second factor and rotates the stamp
func (r *Accounts) SetTwoFactorEnabled(ctx context.Context, accountID int64, enabled bool) (auth.SecurityStamp, error) {
	return r.updateWithStamp(ctx, r.db, accountID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("two_factor_enabled = ?", enabled)
	})
}

// RotateSecurityStamp voids every outstanding session and token of the account
func (r *Accounts) RotateSecurityStamp(ctx context.Context, accountID int64) (auth.SecurityStamp, error) {
	return r.updateWithStamp(ctx, r.db, accountID, nil)
}

// CreateRole inserts a role
func (r *Accounts) CreateRole(ctx context.Context, name string) (auth.Role, error) {
	model := &RoleModel{Name: name}
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return auth.Role{}, errors.Wrap(err, errors.CategoryInternal, "failed to create role")
	}
	return auth.Role{ID: model.ID, Name: model.Name}, nil
}

// AssignRole grants roleID to the account and rotates its stamp
func (r *Accounts) AssignRole(ctx context.Context, accountID, roleID int64) (auth.SecurityStamp, error) {
	var stamp auth.SecurityStamp
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		link := &AccountRoleModel{AccountID: accountID, RoleID: roleID}
		if _, err := tx.NewInsert().Model(link).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to assign role")
		}

		var err error
		stamp, err = r.updateWithStamp(ctx, tx, accountID, nil)
		return err
	})
	return stamp, err
}

// AddRoleClaim attaches a claim to a role. Holders pick it up on their next
// principal build.
func (r *Accounts) AddRoleClaim(ctx context.Context, roleID int64, claim auth.Claim) error {
	model := &RoleClaimModel{RoleID: roleID, Type: claim.Type, Value: claim.Value}
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to add role claim")
	}
	return nil
}

// AddAccountClaim attaches a claim to the account and rotates its stamp
func (r *Accounts) AddAccountClaim(ctx context.Context, accountID int64, claim auth.Claim) (auth.SecurityStamp, error) {
	var stamp auth.SecurityStamp
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		model := &AccountClaimModel{AccountID: accountID, Type: claim.Type, Value: claim.Value}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to add account claim")
		}

		var err error
		stamp, err = r.updateWithStamp(ctx, tx, accountID, nil)
		return err
	})
	return stamp, err
}

// GetRoles implements auth.RoleClaimLookup.
func (r *Accounts) GetRoles(ctx context.Context, accountID int64) ([]auth.Role, error) {
	var models []RoleModel
	err := r.db.NewSelect().
		Model(&models).
		Join("JOIN account_roles AS ar ON ar.role_id = r.id").
		Where("ar.account_id = ?", accountID).
		Order("r.id ASC").
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load roles")
	}

	roles := make([]auth.Role, len(models))
	for i, m := range models {
		roles[i] = auth.Role{ID: m.ID, Name: m.Name}
	}
	return roles, nil
}

// GetRoleClaims implements auth.RoleClaimLookup.
func (r *Accounts) GetRoleClaims(ctx context.Context, roleID int64) ([]auth.Claim, error) {
	var models []RoleClaimModel
	err := r.db.NewSelect().
		Model(&models).
		Where("role_id = ?", roleID).
		Order("id ASC").
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load role claims")
	}

	claims := make([]auth.Claim, len(models))
	for i, m := range models {
		claims[i] = auth.Claim{Type: m.Type, Value: m.Value}
	}
	return claims, nil
}

// GetAccountClaims implements auth.RoleClaimLookup.
func (r *Accounts) GetAccountClaims(ctx context.Context, accountID int64) ([]auth.Claim, error) {
	var models []AccountClaimModel
	err := r.db.NewSelect().
		Model(&models).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account claims")
	}

	claims := make([]auth.Claim, len(models))
	for i, m := range models {
		claims[i] = auth.Claim{Type: m.Type, Value: m.Value}
	}
	return claims, nil
}

func (r *Accounts) getModel(ctx context.Context, db bun.IDB, accountID int64) (*AccountModel, error) {
	var model AccountModel
	err := db.NewSelect().
		Model(&model).
		Where("id = ?", accountID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "failed to get account")
	}
	return &model, nil
}

func (r *Accounts) updateWithStamp(ctx context.Context, db bun.IDB, accountID int64, set func(*bun.UpdateQuery) *bun.UpdateQuery) (auth.SecurityStamp, error) {
	stamp := uuid.New()
	q := db.NewUpdate().
		Model((*AccountModel)(nil)).
		Set("security_stamp = ?", stamp).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", accountID)
	if set != nil {
		q = set(q)
	}

	res, err := q.Exec(ctx)
	if err := checkAffected(res, err, "failed to update account"); err != nil {
		return auth.ZeroStamp, err
	}
	return auth.SecurityStamp(stamp), nil
}

func checkAffected(res sql.Result, err error, msg string) error {
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, msg)
	}
	if n == 0 {
		return auth.ErrAccountNotFound
	}
	return nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrAccountNotFound
	}
	return errors.Wrap(err, errors.CategoryInternal, msg)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func errEmailRequired() error {
	return errors.New("email is required", errors.CategoryValidation).
		WithCode(errors.CodeBadRequest)
}
