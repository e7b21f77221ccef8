package account

import (
	"math/rand/v2"
	"strings"

	stderrors "errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultOTPLength is used when the configured length is not positive
const DefaultOTPLength = 6

const usernameSuffixDigits = 4

// GenerateOTP returns a fixed-length numeric login challenge. The code
// is short-lived and single-use, not a cryptographic secret; each call
// draws independently, there is no hidden state.
func GenerateOTP(length int) string {
	if length <= 0 {
		length = DefaultOTPLength
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// GenerateUsername builds a "first.last" handle with a random numeric
// suffix. It is collision-tolerant, not collision-free; retrying on a
// uniqueness conflict is the caller's job.
func GenerateUsername(first, last string) string {
	first = sanitizeNamePart(first)
	last = sanitizeNamePart(last)

	var b strings.Builder
	b.WriteString(first)
	b.WriteString(".")
	b.WriteString(last)
	for i := 0; i < usernameSuffixDigits; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

func sanitizeNamePart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "")
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", goerrors.New("password must not be empty", goerrors.CategoryValidation).
			WithTextCode("EMPTY_PASSWORD").
			WithCode(goerrors.CodeBadRequest)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password
// matches the hashed password. The comparison is constant-time and the
// failure shape never says which part was wrong.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrUnauthorized
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password comparison failed")
	}
	return nil
}
