package account

import (
	"github.com/goliatone/go-errors"
)

const (
	// TextCodeTokenExpired tags activation tokens past their expiry
	TextCodeTokenExpired = "ACTIVATION_TOKEN_EXPIRED"
	// TextCodeLockedOut tags lockout rejections carrying the remaining wait
	TextCodeLockedOut = "ACCOUNT_LOCKED_OUT"
)

// ErrEmailTaken is returned when registering an email that already exists
var ErrEmailTaken = errors.New("email address is already registered", errors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(errors.CodeConflict)

// ErrIDNoTaken is returned when registering an id_no that already exists
var ErrIDNoTaken = errors.New("id number is already registered", errors.CategoryConflict).
	WithTextCode("ID_NO_TAKEN").
	WithCode(errors.CodeConflict)

// ErrAccountNotFound is returned when no account matches a lookup that
// is allowed to disclose existence (activation, resend)
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode("ACCOUNT_NOT_FOUND").
	WithCode(errors.CodeNotFound)

// ErrUnauthorized is the deliberately vague credential failure; an
// unknown email and a wrong OTP produce the same shape so callers
// cannot enumerate accounts
var ErrUnauthorized = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for activation tokens that fail to
// parse or carry a bad signature
var ErrTokenMalformed = errors.New("activation token is invalid", errors.CategoryValidation).
	WithTextCode("ACTIVATION_TOKEN_INVALID").
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned for activation tokens past their expiry
var ErrTokenExpired = errors.New("activation token has expired", errors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenPurpose is returned when a structurally valid token was
// minted for a different purpose
var ErrTokenPurpose = errors.New("token was issued for a different purpose", errors.CategoryValidation).
	WithTextCode("TOKEN_PURPOSE_MISMATCH").
	WithCode(errors.CodeBadRequest)

// ErrAlreadyActive is returned when activating an account twice
var ErrAlreadyActive = errors.New("account is already active", errors.CategoryConflict).
	WithTextCode("ALREADY_ACTIVE").
	WithCode(errors.CodeConflict)

// ErrInvalidOTP is returned on an OTP mismatch; it counts toward lockout
var ErrInvalidOTP = errors.New("invalid OTP", errors.CategoryAuth).
	WithTextCode("INVALID_OTP").
	WithCode(errors.CodeBadRequest)

// ErrOTPExpired is returned when the stored challenge is stale; it does
// not count toward lockout
var ErrOTPExpired = errors.New("OTP has expired", errors.CategoryAuth).
	WithTextCode("OTP_EXPIRED").
	WithCode(errors.CodeBadRequest)

// ErrAccountInactive rejects login flows for pending or inactive accounts
var ErrAccountInactive = errors.New("account is not active", errors.CategoryAuth).
	WithTextCode("ACCOUNT_INACTIVE").
	WithCode(errors.CodeUnauthorized)

// ErrAccountLocked rejects login flows for locked accounts
var ErrAccountLocked = errors.New("account is locked", errors.CategoryAuth).
	WithTextCode("ACCOUNT_LOCKED").
	WithCode(errors.CodeUnauthorized)

// ErrLockedOut is returned while the lockout window is still open;
// instances carry lockout_remaining_minutes metadata
var ErrLockedOut = errors.New("account is temporarily locked", errors.CategoryAuth).
	WithTextCode(TextCodeLockedOut).
	WithCode(errors.CodeUnauthorized)

// ErrDeliveryFailure is returned when a notification could not be sent
// after the configured retries
var ErrDeliveryFailure = errors.New("failed to deliver notification", errors.CategoryOperation).
	WithTextCode("DELIVERY_FAILURE").
	WithCode(errors.CodeInternal)

// LockedOutError builds an ErrLockedOut instance annotated with the
// remaining wait, so callers can surface it without string parsing
func LockedOutError(remainingMinutes int) *errors.Error {
	return ErrLockedOut.Clone().WithMetadata(map[string]any{
		"lockout_remaining_minutes": remainingMinutes,
	})
}

// LockoutRemainingMinutes extracts the remaining wait from a lockout
// error, returning false for anything else
func LockoutRemainingMinutes(err error) (int, bool) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return 0, false
	}
	if richErr.TextCode != TextCodeLockedOut {
		return 0, false
	}
	if v, ok := richErr.Metadata["lockout_remaining_minutes"].(int); ok {
		return v, true
	}
	return 0, false
}
