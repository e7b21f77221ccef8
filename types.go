package account

import "fmt"

// Logger is the minimal logging surface the library needs; plug in
// your own implementation with the WithX options
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the lifecycle policy knobs. Inject a value at
// construction time; nothing in the library reads ambient state, so
// tests can vary thresholds per case.
type Config interface {
	// GetSigningKey is the HMAC secret for activation tokens
	GetSigningKey() string
	// GetActivationTokenExpiration is the activation token lifetime in minutes
	GetActivationTokenExpiration() int
	// GetOTPLength is the number of digits in a login OTP
	GetOTPLength() int
	// GetOTPExpiration is the OTP lifetime in minutes
	GetOTPExpiration() int
	// GetMaxLoginAttempts is the failed-attempt count that triggers a lockout
	GetMaxLoginAttempts() int
	// GetLockoutDuration is the lockout window in minutes
	GetLockoutDuration() int
	// GetActivationBaseURL is the public base used to build activation links
	GetActivationBaseURL() string
	// GetSupportEmail is the contact surfaced in activation messages
	GetSupportEmail() string
}

// StaticConfig is a plain-value Config implementation
type StaticConfig struct {
	SigningKey                string
	ActivationTokenExpiration int
	OTPLength                 int
	OTPExpiration             int
	MaxLoginAttempts          int
	LockoutDuration           int
	ActivationBaseURL         string
	SupportEmail              string
}

func (c StaticConfig) GetSigningKey() string             { return c.SigningKey }
func (c StaticConfig) GetActivationTokenExpiration() int { return c.ActivationTokenExpiration }
func (c StaticConfig) GetOTPLength() int                 { return c.OTPLength }
func (c StaticConfig) GetOTPExpiration() int             { return c.OTPExpiration }
func (c StaticConfig) GetMaxLoginAttempts() int          { return c.MaxLoginAttempts }
func (c StaticConfig) GetLockoutDuration() int           { return c.LockoutDuration }
func (c StaticConfig) GetActivationBaseURL() string      { return c.ActivationBaseURL }
func (c StaticConfig) GetSupportEmail() string           { return c.SupportEmail }

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
