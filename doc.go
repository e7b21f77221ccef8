// Package account implements the account lifecycle behind an
// email + OTP login flow: registration, token based activation,
// one-time-password challenges, and failed-login lockout.
//
// Lifecycle:
//   - Accounts carry an AccountStatus persisted via Bun. A fresh
//     registration is pending, an activation link moves it to active,
//     repeated login failures lock it, and the lockout lifts on its
//     own once the configured window lapses. Whether an account is
//     active is always derived from the status, never stored twice.
//   - Lifecycle centralizes the transitions, the conflict checks, the
//     failure counters, and the notification retries. Construct it
//     with NewLifecycle and plug in your own Notifier, Config, and
//     ActivitySink.
//
// Tokens and challenges:
//   - Activation links embed a signed, self-contained token minted by
//     ActivationTokenService. Tokens are stateless; issuing a new one
//     does not revoke those still inside their expiry.
//   - Login is two-step: RequestLoginOTP verifies the password and
//     emails a short-lived numeric code, VerifyLoginOTP consumes it.
//     A wrong code counts toward lockout, a stale one does not.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing
//     registrations, activations, challenges, and lock transitions.
//     Sinks run best-effort (errors are logged) so you can forward to
//     a database or queue without blocking a login.
package account
