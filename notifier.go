package contacts

import "context"

// Notifier delivers account emails. Implementations must be safe for
// concurrent use; delivery happens off the request path.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

type noopNotifier struct{}

func (noopNotifier) SendVerificationEmail(context.Context, string, string) error { return nil }
func (noopNotifier) SendPasswordReset(context.Context, string, string) error     { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// LogNotifier writes outbound messages to the logger instead of sending
// them. Used in development where no mail relay is configured.
type LogNotifier struct {
	logger Logger
}

func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.logger.Info("verification email for %s token=%s", email, token)
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.logger.Info("password reset email for %s token=%s", email, token)
	return nil
}
