package smsprovider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"
)

// MockProvider is a simulated SMS provider for development and tests.
type MockProvider struct {
	logger   *slog.Logger
	name     string
	failRate float64
}

// NewMockProvider creates a MockProvider that fails a failRate fraction of
// sends (0.0 to 1.0).
func NewMockProvider(logger *slog.Logger, name string, failRate float64) Adapter {
	if name == "" {
		name = "mock-provider"
	}
	return &MockProvider{
		logger:   logger.With("provider", name),
		name:     name,
		failRate: failRate,
	}
}

func (p *MockProvider) GetName() string {
	return p.name
}

func (p *MockProvider) Send(ctx context.Context, request SendRequest) (*SendResponse, error) {
	p.logger.InfoContext(ctx, "MockProvider: Send called",
		"sender", request.SenderID,
		"recipient", request.Recipient,
		"content_len", len(request.Content))

	if rand.Float64() < p.failRate {
		errMsg := fmt.Sprintf("mock provider simulated failure for recipient %s", request.Recipient)
		p.logger.WarnContext(ctx, errMsg)
		return &SendResponse{
			Success:      false,
			StatusCode:   500,
			ErrorMessage: errMsg,
			ProviderName: p.name,
		}, nil
	}

	providerMsgID := uuid.NewString()
	return &SendResponse{
		Success:           true,
		StatusCode:        200,
		ProviderMessageID: providerMsgID,
		ProviderName:      p.name,
	}, nil
}
