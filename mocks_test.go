package account_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goliatone/go-account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccounts implements account.Accounts. The embedded interface
// covers the generic repository surface the lifecycle never touches;
// only the methods the lifecycle actually calls are mocked.
type MockAccounts struct {
	mock.Mock
	account.Accounts
}

func (m *MockAccounts) FindByEmail(ctx context.Context, email string, includeInactive bool) (*account.Account, error) {
	args := m.Called(ctx, email, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string, includeInactive bool) (*account.Account, error) {
	args := m.Called(ctx, tx, email, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccounts) FindByIDNoTx(ctx context.Context, tx bun.IDB, idNo int64, includeInactive bool) (*account.Account, error) {
	args := m.Called(ctx, tx, idNo, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccounts) FindByID(ctx context.Context, id uuid.UUID, includeInactive bool) (*account.Account, error) {
	args := m.Called(ctx, id, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, record *account.Account) (*account.Account, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccounts) SaveLoginState(ctx context.Context, record *account.Account) (*account.Account, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

// MockRepositoryManager implements account.RepositoryManager. RunInTx
// runs the callback inline with a zero transaction so lifecycle tests
// exercise the real transactional code path without a database.
type MockRepositoryManager struct {
	accounts *MockAccounts
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{accounts: &MockAccounts{}}
}

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() account.Accounts {
	return m.accounts
}

// MockNotifier implements account.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendActivation(ctx context.Context, email, activationURL string, expiryMinutes int, supportEmail string) error {
	args := m.Called(ctx, email, activationURL, expiryMinutes, supportEmail)
	return args.Error(0)
}

func (m *MockNotifier) SendLoginOTP(ctx context.Context, email, otp string) error {
	args := m.Called(ctx, email, otp)
	return args.Error(0)
}

// MockTokenService implements account.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Generate(accountID uuid.UUID) (string, error) {
	args := m.Called(accountID)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(tokenString string) (uuid.UUID, error) {
	args := m.Called(tokenString)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// recordingSink collects activity events for assertions
type recordingSink struct {
	mu     sync.Mutex
	events []account.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event account.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []account.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]account.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func staticClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeClock is a manually advanced clock for lifecycle tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func noSleep(context.Context, time.Duration) error { return nil }
