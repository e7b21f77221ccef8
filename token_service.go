package account

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// PurposeActivation tags tokens minted for account activation
const PurposeActivation = "activation"

// ActivationClaims is the payload carried by activation tokens
type ActivationClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose,omitempty"`
}

// ActivationTokenService mints and validates the signed, self-contained
// tokens embedded in activation links. Tokens are stateless: minting a
// fresh one does not revoke those still within their own expiry.
type ActivationTokenService struct {
	signingKey []byte
	expiration int // minutes
	issuer     string
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes the token service
type TokenServiceOption func(*ActivationTokenService)

// WithTokenClock injects a custom clock (useful for tests)
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *ActivationTokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *ActivationTokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewActivationTokenService creates a token service signing with HS256
func NewActivationTokenService(signingKey []byte, expirationMinutes int, issuer string, opts ...TokenServiceOption) *ActivationTokenService {
	ts := &ActivationTokenService{
		signingKey: signingKey,
		expiration: expirationMinutes,
		issuer:     issuer,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Generate mints an activation token for the given account
func (ts *ActivationTokenService) Generate(accountID uuid.UUID) (string, error) {
	now := ts.now()
	claims := &ActivationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.expiration) * time.Minute)),
		},
		Purpose: PurposeActivation,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign activation token")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning the account
// id it was minted for. Signature, purpose, and expiry failures are
// each distinguishable.
func (ts *ActivationTokenService) Validate(tokenString string) (uuid.UUID, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &ActivationClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("activation token uses unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*ActivationClaims)
	if !ok || !token.Valid {
		ts.logger.Error("activation token claims could not be decoded")
		return uuid.Nil, ErrTokenMalformed
	}

	if claims.Purpose != PurposeActivation {
		return uuid.Nil, ErrTokenPurpose.Clone().WithMetadata(map[string]any{
			"purpose": claims.Purpose,
		})
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	return accountID, nil
}
