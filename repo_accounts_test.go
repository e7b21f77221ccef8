package account_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-account"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateAccounts = `CREATE TABLE accounts (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL UNIQUE,
    first_name TEXT NOT NULL,
    middle_name TEXT,
    last_name TEXT NOT NULL,
    phone_number TEXT,
    id_no INTEGER NOT NULL UNIQUE,
    account_role TEXT NOT NULL,
    security_question TEXT,
    security_answer TEXT,
    password_hash TEXT,
    account_status TEXT NOT NULL,
    failed_login_attempts INTEGER NOT NULL DEFAULT 0,
    last_failed_login TIMESTAMP NULL,
    otp TEXT NOT NULL DEFAULT '',
    otp_expiry_time TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

func setupAccountsRepo(t *testing.T) (account.Accounts, *bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateAccounts)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return account.NewAccountsRepository(bunDB), bunDB, cleanup
}

func seedAccount(t *testing.T, repo account.Accounts, email string, idNo int64, status account.AccountStatus) *account.Account {
	t.Helper()

	record, err := repo.Register(context.Background(), &account.Account{
		Email:     email,
		Username:  email,
		FirstName: "Jane",
		LastName:  "Doe",
		IDNo:      idNo,
		Status:    status,
	})
	require.NoError(t, err)
	return record
}

func TestAccountsRegisterDefaults(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	record, err := repo.Register(context.Background(), &account.Account{
		Email:     "jane@example.com",
		Username:  "jane.doe1234",
		FirstName: "Jane",
		LastName:  "Doe",
		IDNo:      12345678,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, account.AccountStatusPending, record.Status)
	assert.Equal(t, account.RoleCustomer, record.Role)
	assert.NotNil(t, record.CreatedAt)
}

func TestAccountsFindVisibility(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()

	pending := seedAccount(t, repo, "pending@example.com", 1001, account.AccountStatusPending)
	active := seedAccount(t, repo, "active@example.com", 1002, account.AccountStatusActive)
	locked := seedAccount(t, repo, "locked@example.com", 1003, account.AccountStatusLocked)
	inactive := seedAccount(t, repo, "inactive@example.com", 1004, account.AccountStatusInactive)

	t.Run("activated-only lookups skip pending and inactive", func(t *testing.T) {
		_, err := repo.FindByEmail(ctx, pending.Email, false)
		assert.True(t, repository.IsRecordNotFound(err), "got: %v", err)

		_, err = repo.FindByEmail(ctx, inactive.Email, false)
		assert.True(t, repository.IsRecordNotFound(err), "got: %v", err)

		found, err := repo.FindByEmail(ctx, active.Email, false)
		require.NoError(t, err)
		assert.Equal(t, active.ID, found.ID)

		// a locked account is still reachable so the lockout flow can run
		found, err = repo.FindByEmail(ctx, locked.Email, false)
		require.NoError(t, err)
		assert.Equal(t, locked.ID, found.ID)
	})

	t.Run("inclusive lookups see every status", func(t *testing.T) {
		for _, record := range []*account.Account{pending, active, locked, inactive} {
			found, err := repo.FindByEmail(ctx, record.Email, true)
			require.NoError(t, err)
			assert.Equal(t, record.ID, found.ID)
		}
	})

	t.Run("lookups by id number and id behave the same", func(t *testing.T) {
		found, err := repo.FindByIDNo(ctx, active.IDNo, false)
		require.NoError(t, err)
		assert.Equal(t, active.ID, found.ID)

		_, err = repo.FindByIDNo(ctx, pending.IDNo, false)
		assert.True(t, repository.IsRecordNotFound(err))

		found, err = repo.FindByID(ctx, pending.ID, true)
		require.NoError(t, err)
		assert.Equal(t, pending.Email, found.Email)
	})

	t.Run("a missing record is not found", func(t *testing.T) {
		_, err := repo.FindByEmail(ctx, "nobody@example.com", true)
		assert.True(t, repository.IsRecordNotFound(err))

		_, err = repo.FindByIDNo(ctx, 999999, true)
		assert.True(t, repository.IsRecordNotFound(err))
	})
}

func TestAccountsSaveLoginState(t *testing.T) {
	repo, _, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()
	record := seedAccount(t, repo, "jane@example.com", 12345678, account.AccountStatusActive)

	failedAt := time.Now().UTC().Truncate(time.Second)
	expiry := failedAt.Add(5 * time.Minute)

	record.Status = account.AccountStatusLocked
	record.FailedLoginAttempts = 3
	record.LastFailedLogin = &failedAt
	record.OTP = "123456"
	record.OTPExpiryTime = &expiry

	updated, err := repo.SaveLoginState(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, account.AccountStatusLocked, updated.Status)
	assert.Equal(t, 3, updated.FailedLoginAttempts)
	assert.Equal(t, "123456", updated.OTP)
	require.NotNil(t, updated.LastFailedLogin)
	require.NotNil(t, updated.OTPExpiryTime)

	t.Run("clears zero-valued fields the ORM would skip", func(t *testing.T) {
		updated.Status = account.AccountStatusActive
		updated.FailedLoginAttempts = 0
		updated.LastFailedLogin = nil
		updated.OTP = ""
		updated.OTPExpiryTime = nil

		cleared, err := repo.SaveLoginState(ctx, updated)
		require.NoError(t, err)

		assert.Equal(t, account.AccountStatusActive, cleared.Status)
		assert.Equal(t, 0, cleared.FailedLoginAttempts)
		assert.Nil(t, cleared.LastFailedLogin)
		assert.Empty(t, cleared.OTP)
		assert.Nil(t, cleared.OTPExpiryTime)

		fresh, err := repo.FindByEmail(ctx, "jane@example.com", false)
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.FailedLoginAttempts)
		assert.Empty(t, fresh.OTP)
	})

	t.Run("an unknown id is not found", func(t *testing.T) {
		ghost := &account.Account{ID: uuid.New(), Status: account.AccountStatusActive}
		_, err := repo.SaveLoginState(ctx, ghost)
		assert.True(t, repository.IsRecordNotFound(err), "got: %v", err)
	})
}

func TestRepositoryManagerRunInTx(t *testing.T) {
	_, bunDB, cleanup := setupAccountsRepo(t)
	defer cleanup()

	ctx := context.Background()
	manager := account.NewRepositoryManager(bunDB)
	require.NoError(t, manager.Validate())

	t.Run("rolls back the insert when the callback fails", func(t *testing.T) {
		err := manager.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, rerr := manager.Accounts().RegisterTx(ctx, tx, &account.Account{
				Email:     "tx@example.com",
				Username:  "tx.user",
				FirstName: "Tx",
				LastName:  "User",
				IDNo:      5555,
			})
			require.NoError(t, rerr)
			return assert.AnError
		})
		require.Error(t, err)

		_, err = manager.Accounts().FindByEmail(ctx, "tx@example.com", true)
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("commits when the callback succeeds", func(t *testing.T) {
		err := manager.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, rerr := manager.Accounts().RegisterTx(ctx, tx, &account.Account{
				Email:     "commit@example.com",
				Username:  "commit.user",
				FirstName: "Commit",
				LastName:  "User",
				IDNo:      5556,
			})
			return rerr
		})
		require.NoError(t, err)

		found, err := manager.Accounts().FindByEmail(ctx, "commit@example.com", true)
		require.NoError(t, err)
		assert.Equal(t, account.AccountStatusPending, found.Status)
	})

	t.Run("refuses to start on a canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		err := manager.RunInTx(canceled, nil, func(ctx context.Context, tx bun.Tx) error {
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
