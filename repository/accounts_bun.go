package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	auth "github.com/goliatone/go-authcore"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountModel is the Bun model for accounts.
type AccountModel struct {
	bun.BaseModel `bun:"table:accounts"`

	ID               uuid.UUID `bun:"id,pk,type:uuid"`
	Email            string    `bun:"email,notnull,unique"`
	CredentialSecret string    `bun:"credential_secret,notnull"`
	FederationOnly   bool      `bun:"federation_only,notnull,default:false"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BunAccounts implements auth.AccountStore and auth.AccountDirectory on a
// relational database. Email uniqueness comes from the unique index.
type BunAccounts struct {
	db  *bun.DB
	now func() time.Time
}

var (
	_ auth.AccountStore     = (*BunAccounts)(nil)
	_ auth.AccountDirectory = (*BunAccounts)(nil)
)

// NewBunAccounts creates a new repository.
func NewBunAccounts(db *bun.DB) *BunAccounts {
	return &BunAccounts{db: db, now: time.Now}
}

// FindByEmail implements auth.AccountStore.
func (r *BunAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return r.findOne(ctx, r.db, "email = ?", email)
}

// FindByID implements auth.AccountStore.
func (r *BunAccounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrAccountNotFound
	}
	return r.findOne(ctx, r.db, "id = ?", uid)
}

// Create implements auth.AccountStore.
func (r *BunAccounts) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	if account == nil {
		return nil, storeError("create", errors.New("nil account"))
	}

	now := r.now().UTC()
	model := &AccountModel{
		ID:               uuid.New(),
		Email:            account.Email,
		CredentialSecret: account.CredentialSecret,
		FederationOnly:   account.FederationOnly,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, auth.ErrDuplicateAccount
		}
		return nil, storeError("create", err)
	}

	return toAccount(model), nil
}

// Update implements auth.AccountStore.
func (r *BunAccounts) Update(ctx context.Context, id string, patch auth.AccountPatch) (*auth.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrAccountNotFound
	}

	var updated *auth.Account
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*AccountModel)(nil)).
			Set("updated_at = ?", r.now().UTC()).
			Where("id = ?", uid)

		if patch.Email != nil {
			q = q.Set("email = ?", *patch.Email)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}

		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return auth.ErrAccountNotFound
		}

		updated, err = r.findOne(ctx, tx, "id = ?", uid)
		return err
	})

	if err != nil {
		return nil, r.mapErr("update", err)
	}

	return updated, nil
}

// List implements auth.AccountDirectory.
func (r *BunAccounts) List(ctx context.Context) ([]*auth.Account, error) {
	var models []AccountModel
	err := r.db.NewSelect().
		Model(&models).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*auth.Account{}, nil
		}
		return nil, storeError("list", err)
	}

	accounts := make([]*auth.Account, len(models))
	for i := range models {
		accounts[i] = toAccount(&models[i])
	}
	return accounts, nil
}

// Delete implements auth.AccountDirectory.
func (r *BunAccounts) Delete(ctx context.Context, id string) (*auth.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrAccountNotFound
	}

	var removed *auth.Account
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := r.findOne(ctx, tx, "id = ?", uid)
		if err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*AccountModel)(nil)).
			Where("id = ?", uid).
			Exec(ctx); err != nil {
			return err
		}

		removed = account
		return nil
	})

	if err != nil {
		return nil, r.mapErr("delete", err)
	}

	return removed, nil
}

func (r *BunAccounts) findOne(ctx context.Context, db bun.IDB, where string, arg any) (*auth.Account, error) {
	var model AccountModel
	err := db.NewSelect().
		Model(&model).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, storeError("find", err)
	}
	return toAccount(&model), nil
}

func (r *BunAccounts) mapErr(op string, err error) error {
	switch {
	case auth.IsErrorKind(err, auth.ErrAccountNotFound),
		auth.IsErrorKind(err, auth.ErrDuplicateAccount),
		auth.IsErrorKind(err, storeFailure):
		return err
	case isUniqueViolation(err):
		return auth.ErrDuplicateAccount
	default:
		return storeError(op, err)
	}
}

func toAccount(m *AccountModel) *auth.Account {
	return &auth.Account{
		ID:               m.ID.String(),
		Email:            m.Email,
		CredentialSecret: m.CredentialSecret,
		FederationOnly:   m.FederationOnly,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
