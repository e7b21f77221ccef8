package account

import (
	"context"
	"fmt"
)

// Notifier delivers out-of-band activation links and login codes. It
// fails loudly; the lifecycle owns retries and cleanup.
type Notifier interface {
	SendActivation(ctx context.Context, email, activationURL string, expiryMinutes int, supportEmail string) error
	SendLoginOTP(ctx context.Context, email, otp string) error
}

// PrintNotifier writes notifications to stdout. It exists so examples
// and local development work without an email transport.
type PrintNotifier struct{}

// SendActivation implements Notifier
func (PrintNotifier) SendActivation(_ context.Context, email, activationURL string, expiryMinutes int, supportEmail string) error {
	fmt.Println("====== SENDING ACTIVATION EMAIL =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("link: %s\n", activationURL)
	fmt.Printf("expires in: %d minutes\n", expiryMinutes)
	fmt.Printf("support: %s\n", supportEmail)
	return nil
}

// SendLoginOTP implements Notifier
func (PrintNotifier) SendLoginOTP(_ context.Context, email, otp string) error {
	fmt.Println("====== SENDING LOGIN OTP =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("code: %s\n", otp)
	return nil
}

var _ Notifier = PrintNotifier{}
