package external

import (
	"context"
	"log/slog"

	"carwash/internal/types"
)

// StubEmailProvider logs the reminder instead of sending it and returns a
// synthetic message id. Selected with EMAIL_PROVIDER=stub for local runs.
type StubEmailProvider struct {
	logger *slog.Logger
}

var _ EmailProvider = (*StubEmailProvider)(nil)

func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub email provider: reminder not sent",
		"to_domain", recipientDomain(input.To),
		"subject", input.Subject,
		"reference_id", input.ReferenceID,
	)
	return "msg_stub_" + input.ReferenceID, nil
}

func recipientDomain(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return ""
}
