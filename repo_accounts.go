package account

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SaveLoginStateSQL persists the transient login-defense fields in one
// statement and returns the updated row so callers reconfirm what the
// store observed.
// NOTE: updating through the ORM fails for this shape, it wont clear
// zero-valued fields (otp, failed_login_attempts, last_failed_login).
var SaveLoginStateSQL = `UPDATE "accounts" AS "acct"
SET
	"account_status" = ?,
	"failed_login_attempts" = ?,
	"last_failed_login" = ?,
	"otp" = ?,
	"otp_expiry_time" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE (
	"acct"."id" = ?
) RETURNING *;`

// activatedStatuses are the statuses visible to login-path lookups:
// a locked account went through activation and must stay reachable so
// the lockout flow can evaluate it.
var activatedStatuses = []AccountStatus{AccountStatusActive, AccountStatusLocked}

type Accounts interface {
	repository.Repository[*Account]

	FindByEmail(ctx context.Context, email string, includeInactive bool) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string, includeInactive bool) (*Account, error)
	FindByIDNo(ctx context.Context, idNo int64, includeInactive bool) (*Account, error)
	FindByIDNoTx(ctx context.Context, tx bun.IDB, idNo int64, includeInactive bool) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID, includeInactive bool) (*Account, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, includeInactive bool) (*Account, error)

	Register(ctx context.Context, record *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	SaveLoginState(ctx context.Context, record *Account) (*Account, error)
	SaveLoginStateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) FindByEmail(ctx context.Context, email string, includeInactive bool) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email, includeInactive)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string, includeInactive bool) (*Account, error) {
	return a.findOneTx(ctx, tx, "email", email, includeInactive)
}

func (a *accounts) FindByIDNo(ctx context.Context, idNo int64, includeInactive bool) (*Account, error) {
	return a.FindByIDNoTx(ctx, a.db, idNo, includeInactive)
}

func (a *accounts) FindByIDNoTx(ctx context.Context, tx bun.IDB, idNo int64, includeInactive bool) (*Account, error) {
	return a.findOneTx(ctx, tx, "id_no", idNo, includeInactive)
}

func (a *accounts) FindByID(ctx context.Context, id uuid.UUID, includeInactive bool) (*Account, error) {
	return a.FindByIDTx(ctx, a.db, id, includeInactive)
}

func (a *accounts) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, includeInactive bool) (*Account, error) {
	return a.findOneTx(ctx, tx, "id", id.String(), includeInactive)
}

func (a *accounts) findOneTx(ctx context.Context, tx bun.IDB, column string, value any, includeInactive bool) (*Account, error) {
	record := &Account{}
	q := tx.NewSelect().Model(record)

	if !includeInactive {
		q = q.Where("?TableAlias.account_status IN (?)", bun.In(activatedStatuses))
	}

	err := q.
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) Register(ctx context.Context, record *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, record)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, record)
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) SaveLoginState(ctx context.Context, record *Account) (*Account, error) {
	return a.SaveLoginStateTx(ctx, a.db, record)
}

func (a *accounts) SaveLoginStateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, tx, SaveLoginStateSQL,
		record.Status,
		record.FailedLoginAttempts,
		record.LastFailedLogin,
		record.OTP,
		record.OTPExpiryTime,
		record.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": record.ID.String(),
			})
	}

	return res[0], nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleCustomer
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
}
