package mailer

import "context"

// Mailer delivers verification mail. Delivery is best-effort: a failure is
// reported to the caller but never rolls back the state that triggered it.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, name, code string) error
}
