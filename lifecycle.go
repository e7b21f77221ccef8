package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultDeliveryAttempts   = 3
	defaultDeliveryBackoff    = time.Second
	defaultUsernameRetryLimit = 3
)

// TokenService mints and validates activation tokens
type TokenService interface {
	Generate(accountID uuid.UUID) (string, error)
	Validate(tokenString string) (uuid.UUID, error)
}

// RegisterInput carries the attributes of a new registration. Secrets
// arrive in cleartext and are hashed before they touch the store.
type RegisterInput struct {
	Email            string
	FirstName        string
	MiddleName       string
	LastName         string
	Phone            string
	IDNo             int64
	Password         string
	SecurityQuestion SecurityQuestion
	SecurityAnswer   string
	Role             AccountRole
}

// Lifecycle drives accounts through their state machine: pending on
// registration, active on token activation, locked after repeated
// failed logins, and back to active when the lockout window lapses.
type Lifecycle struct {
	repo     RepositoryManager
	notifier Notifier
	config   Config
	tokens   TokenService
	logger   Logger
	activity ActivitySink

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	useHashid        bool
	deliveryAttempts int
	deliveryBackoff  time.Duration
	usernameRetries  int
}

// LifecycleOption customizes the lifecycle
type LifecycleOption func(*Lifecycle)

// WithLogger overrides the logger
func WithLogger(logger Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests)
func WithClock(clock func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish lifecycle events
func WithActivitySink(sink ActivitySink) LifecycleOption {
	return func(l *Lifecycle) {
		l.activity = normalizeActivitySink(sink)
	}
}

// WithTokenService overrides the activation token service
func WithTokenService(tokens TokenService) LifecycleOption {
	return func(l *Lifecycle) {
		if tokens != nil {
			l.tokens = tokens
		}
	}
}

// WithSleep replaces the delay between delivery retries, letting tests
// run without waiting on real timers
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) LifecycleOption {
	return func(l *Lifecycle) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// WithDeliveryRetries sets the attempt count and base backoff used when
// sending notifications
func WithDeliveryRetries(attempts int, backoff time.Duration) LifecycleOption {
	return func(l *Lifecycle) {
		if attempts > 0 {
			l.deliveryAttempts = attempts
		}
		if backoff > 0 {
			l.deliveryBackoff = backoff
		}
	}
}

// UseHashid derives account ids deterministically from the email
// instead of minting random UUIDs
func UseHashid() LifecycleOption {
	return func(l *Lifecycle) {
		l.useHashid = true
	}
}

// NewLifecycle creates the account lifecycle service. The repository
// manager, notifier, and config are required; everything else has
// working defaults.
func NewLifecycle(repo RepositoryManager, notifier Notifier, config Config, opts ...LifecycleOption) (*Lifecycle, error) {
	if repo == nil {
		return nil, goerrors.New("lifecycle requires a repository manager", goerrors.CategoryBadInput)
	}

	if notifier == nil {
		return nil, goerrors.New("lifecycle requires a notifier", goerrors.CategoryBadInput)
	}

	if config == nil {
		return nil, goerrors.New("lifecycle requires a config", goerrors.CategoryBadInput)
	}

	l := &Lifecycle{
		repo:             repo,
		notifier:         notifier,
		config:           config,
		logger:           defLogger{},
		activity:         noopActivitySink{},
		now:              time.Now,
		sleep:            defaultSleep,
		deliveryAttempts: defaultDeliveryAttempts,
		deliveryBackoff:  defaultDeliveryBackoff,
		usernameRetries:  defaultUsernameRetryLimit,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	if l.tokens == nil {
		l.tokens = NewActivationTokenService(
			[]byte(config.GetSigningKey()),
			config.GetActivationTokenExpiration(),
			"account",
			WithTokenClock(l.now),
			WithTokenLogger(l.logger),
		)
	}

	return l, nil
}

// Register creates a pending account and emails an activation link.
// Conflict checks see every status so a pending or deactivated account
// still blocks re-registration. If the activation email cannot be
// delivered after retries the account stays registered and the error
// wraps ErrDeliveryFailure; the caller resolves it through the resend
// flow, not by registering again.
func (l *Lifecycle) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	answerHash, err := HashPassword(normalizeSecurityAnswer(input.SecurityAnswer))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "security answer is required").
			WithTextCode("EMPTY_SECURITY_ANSWER").
			WithCode(goerrors.CodeBadRequest)
	}

	record := &Account{
		Email:            input.Email,
		FirstName:        input.FirstName,
		MiddleName:       input.MiddleName,
		LastName:         input.LastName,
		Phone:            input.Phone,
		IDNo:             input.IDNo,
		Role:             input.Role,
		SecurityQuestion: input.SecurityQuestion,
		SecurityAnswer:   answerHash,
		PasswordHash:     passwordHash,
		Status:           AccountStatusPending,
	}

	if l.useHashid {
		if id, herr := hashid.NewUUID(input.Email); herr == nil {
			record.ID = id
		}
	}

	err = l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, ferr := l.repo.Accounts().FindByEmailTx(ctx, tx, input.Email, true); ferr == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(ferr) {
			return ferr
		}

		if _, ferr := l.repo.Accounts().FindByIDNoTx(ctx, tx, input.IDNo, true); ferr == nil {
			return ErrIDNoTaken
		} else if !repository.IsRecordNotFound(ferr) {
			return ferr
		}

		created, rerr := l.registerWithUsernameRetry(ctx, tx, record, input)
		if rerr != nil {
			return rerr
		}

		record = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		AccountID: record.ID.String(),
		Email:     record.Email,
		ToStatus:  record.Status,
	})

	if err := l.sendActivation(ctx, record); err != nil {
		return record, err
	}

	return record, nil
}

// registerWithUsernameRetry inserts the record, regenerating the
// username on a uniqueness conflict. Email and id_no conflicts were
// ruled out just before, so a conflict here is almost certainly the
// generated handle colliding.
func (l *Lifecycle) registerWithUsernameRetry(ctx context.Context, tx bun.Tx, record *Account, input RegisterInput) (*Account, error) {
	var lastErr error
	for attempt := 0; attempt < l.usernameRetries; attempt++ {
		record.Username = GenerateUsername(input.FirstName, input.LastName)

		created, err := l.repo.Accounts().RegisterTx(ctx, tx, record)
		if err == nil {
			return created, nil
		}

		lastErr = err
		l.logger.Warn("registration insert failed, retrying with a new username: %v", err)
	}

	return nil, goerrors.Wrap(lastErr, goerrors.CategoryInternal, "failed to register account")
}

// Activate consumes an activation link token and moves the account
// from pending to active. Tokens are stateless, so an older token that
// has not expired still works; activating twice is a conflict.
func (l *Lifecycle) Activate(ctx context.Context, tokenString string) (*Account, error) {
	accountID, err := l.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	record, err := l.repo.Accounts().FindByID(ctx, accountID, true)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.Clone().WithMetadata(map[string]any{
				"id": accountID.String(),
			})
		}
		return nil, err
	}

	if record.IsActive() {
		return nil, ErrAlreadyActive
	}

	from := record.Status
	if err := l.ResetState(ctx, record, true); err != nil {
		return nil, err
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountActivated,
		AccountID:  record.ID.String(),
		Email:      record.Email,
		FromStatus: from,
		ToStatus:   record.Status,
	})

	return record, nil
}

// ResendActivation mints a fresh activation link for an account that
// never completed activation. Unlike the login flows this endpoint may
// disclose existence; it is reached from the activation email itself.
func (l *Lifecycle) ResendActivation(ctx context.Context, email string) error {
	record, err := l.repo.Accounts().FindByEmail(ctx, email, true)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}

	if record.IsActive() {
		return ErrAlreadyActive
	}

	return l.sendActivation(ctx, record)
}

// RequestLoginOTP verifies the password and issues a short-lived login
// challenge. An unknown email and a wrong password both come back as
// ErrUnauthorized; only the lockout rejection is distinguishable.
func (l *Lifecycle) RequestLoginOTP(ctx context.Context, email, password string) error {
	record, err := l.findForLogin(ctx, email)
	if err != nil {
		return err
	}

	if err := l.CheckLockout(ctx, record); err != nil {
		return err
	}

	if err := l.ValidateStatus(record); err != nil {
		return err
	}

	if err := ComparePasswordAndHash(password, record.PasswordHash); err != nil {
		if goerrors.Is(err, ErrUnauthorized) {
			if ierr := l.IncrementFailedLogin(ctx, record); ierr != nil {
				return ierr
			}
		}
		return err
	}

	otp := GenerateOTP(l.config.GetOTPLength())
	expiry := l.now().Add(time.Duration(l.config.GetOTPExpiration()) * time.Minute)

	record.OTP = otp
	record.OTPExpiryTime = &expiry

	updated, err := l.repo.Accounts().SaveLoginState(ctx, record)
	if err != nil {
		return err
	}
	*record = *updated

	l.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOTPIssued,
		AccountID: record.ID.String(),
		Email:     record.Email,
		ToStatus:  record.Status,
	})

	err = l.deliverWithRetry(ctx, "login otp", func(ctx context.Context) error {
		return l.notifier.SendLoginOTP(ctx, record.Email, otp)
	})
	if err != nil {
		// never leave a valid challenge nobody received
		record.OTP = ""
		record.OTPExpiryTime = nil
		if _, serr := l.repo.Accounts().SaveLoginState(ctx, record); serr != nil {
			l.logger.Error("failed to clear undeliverable otp for %s: %v", record.ID, serr)
		}
		return err
	}

	return nil
}

// VerifyLoginOTP checks the submitted challenge against the stored
// one. A mismatch counts toward lockout; a stale challenge does not,
// the caller simply requests a new one.
func (l *Lifecycle) VerifyLoginOTP(ctx context.Context, email, otp string) (*Account, error) {
	record, err := l.findForLogin(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := l.CheckLockout(ctx, record); err != nil {
		return nil, err
	}

	if err := l.ValidateStatus(record); err != nil {
		return nil, err
	}

	if !record.HasOutstandingOTP() || record.OTP != otp {
		if err := l.IncrementFailedLogin(ctx, record); err != nil {
			return nil, err
		}

		l.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventOTPFailure,
			AccountID: record.ID.String(),
			Email:     record.Email,
			ToStatus:  record.Status,
			Metadata: map[string]any{
				"failed_login_attempts": record.FailedLoginAttempts,
			},
		})

		return nil, ErrInvalidOTP
	}

	if record.OTPExpiryTime == nil || l.now().After(*record.OTPExpiryTime) {
		return nil, ErrOTPExpired
	}

	if err := l.ResetState(ctx, record, false); err != nil {
		return nil, err
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOTPSuccess,
		AccountID: record.ID.String(),
		Email:     record.Email,
		ToStatus:  record.Status,
	})

	return record, nil
}

// CheckLockout rejects accounts still inside their lockout window with
// an error carrying the remaining wait in whole minutes. Once the
// window lapses the account unlocks in place, no operator action and
// no background job involved.
func (l *Lifecycle) CheckLockout(ctx context.Context, record *Account) error {
	if record == nil || !record.IsLocked() {
		return nil
	}

	if record.LastFailedLogin == nil {
		return l.unlock(ctx, record)
	}

	now := l.now()
	window := time.Duration(l.config.GetLockoutDuration()) * time.Minute

	if IsWithinThresholdPeriod(now, *record.LastFailedLogin, window) {
		deadline := record.LastFailedLogin.Add(window)
		return LockedOutError(remainingMinutes(now, deadline))
	}

	return l.unlock(ctx, record)
}

func (l *Lifecycle) unlock(ctx context.Context, record *Account) error {
	from := record.Status
	if err := l.ResetState(ctx, record, false); err != nil {
		return err
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountUnlocked,
		AccountID:  record.ID.String(),
		Email:      record.Email,
		FromStatus: from,
		ToStatus:   record.Status,
	})

	return nil
}

// IncrementFailedLogin bumps the failure counter and stamps the
// failure time; crossing the configured threshold locks the account.
func (l *Lifecycle) IncrementFailedLogin(ctx context.Context, record *Account) error {
	now := l.now()
	from := record.Status

	record.FailedLoginAttempts++
	record.LastFailedLogin = &now

	locked := record.FailedLoginAttempts >= l.config.GetMaxLoginAttempts()
	if locked {
		record.Status = AccountStatusLocked
	}

	updated, err := l.repo.Accounts().SaveLoginState(ctx, record)
	if err != nil {
		return err
	}
	*record = *updated

	if locked {
		l.recordActivity(ctx, ActivityEvent{
			EventType:  ActivityEventAccountLocked,
			AccountID:  record.ID.String(),
			Email:      record.Email,
			FromStatus: from,
			ToStatus:   record.Status,
			Metadata: map[string]any{
				"failed_login_attempts": record.FailedLoginAttempts,
			},
		})
	}

	return nil
}

// ResetState normalizes the account back to active with a clean
// failure counter. It is idempotent: when nothing would change it
// neither persists nor logs. The stored OTP is cleared only when
// asked; a successful login leaves it to age out on its own, issuing
// a new challenge overwrites it.
func (l *Lifecycle) ResetState(ctx context.Context, record *Account, clearOTP bool) error {
	statusChanged := record.Status != AccountStatusActive
	changed := statusChanged ||
		record.FailedLoginAttempts != 0 ||
		record.LastFailedLogin != nil

	if clearOTP && (record.HasOutstandingOTP() || record.OTPExpiryTime != nil) {
		changed = true
	}

	if !changed {
		return nil
	}

	from := record.Status
	record.Status = AccountStatusActive
	record.FailedLoginAttempts = 0
	record.LastFailedLogin = nil
	if clearOTP {
		record.OTP = ""
		record.OTPExpiryTime = nil
	}

	updated, err := l.repo.Accounts().SaveLoginState(ctx, record)
	if err != nil {
		return err
	}
	*record = *updated

	if statusChanged {
		l.logger.Info("account %s status %s -> %s", record.ID, from, record.Status)
	}

	return nil
}

// ValidateStatus gates the login flows on the account status
func (l *Lifecycle) ValidateStatus(record *Account) error {
	if record == nil {
		return ErrUnauthorized
	}

	record.EnsureStatus()

	switch record.Status {
	case AccountStatusActive:
		return nil
	case AccountStatusLocked:
		return ErrAccountLocked
	default:
		return ErrAccountInactive
	}
}

// findForLogin resolves the account behind a login attempt. Pending
// and deactivated accounts are invisible here, and the not-found shape
// matches the bad-credentials shape on purpose.
func (l *Lifecycle) findForLogin(ctx context.Context, email string) (*Account, error) {
	record, err := l.repo.Accounts().FindByEmail(ctx, email, false)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return record, nil
}

func (l *Lifecycle) sendActivation(ctx context.Context, record *Account) error {
	tokenString, err := l.tokens.Generate(record.ID)
	if err != nil {
		return err
	}

	activationURL := fmt.Sprintf("%s/auth/activate/%s", l.config.GetActivationBaseURL(), tokenString)

	return l.deliverWithRetry(ctx, "activation", func(ctx context.Context) error {
		return l.notifier.SendActivation(
			ctx,
			record.Email,
			activationURL,
			l.config.GetActivationTokenExpiration(),
			l.config.GetSupportEmail(),
		)
	})
}

// deliverWithRetry runs a notification a bounded number of times with
// a growing pause between attempts. The sleep honors ctx so a caller
// hanging up stops the retry loop immediately.
func (l *Lifecycle) deliverWithRetry(ctx context.Context, kind string, send func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= l.deliveryAttempts; attempt++ {
		if lastErr = send(ctx); lastErr == nil {
			return nil
		}

		l.logger.Warn("%s delivery attempt %d/%d failed: %v", kind, attempt, l.deliveryAttempts, lastErr)

		if attempt < l.deliveryAttempts {
			// backoff doubles each attempt: 1x, 2x, 4x the base delay
			if err := l.sleep(ctx, l.deliveryBackoff<<(attempt-1)); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryOperation, "delivery retry interrupted")
			}
		}
	}

	return goerrors.Wrap(lastErr, ErrDeliveryFailure.Category, ErrDeliveryFailure.Message).
		WithTextCode(ErrDeliveryFailure.TextCode).
		WithMetadata(map[string]any{
			"notification": kind,
			"attempts":     l.deliveryAttempts,
		})
}

func (l *Lifecycle) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = l.now()
	}

	sink := normalizeActivitySink(l.activity)
	if err := sink.Record(ctx, event); err != nil {
		l.logger.Warn("lifecycle activity sink error: %v", err)
	}
}

// normalizeSecurityAnswer folds case and whitespace so the stored hash
// survives harmless re-typing differences
func normalizeSecurityAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
