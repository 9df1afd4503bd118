package smsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPProvider sends SMS through the provider's JSON send API.
type HTTPProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

func NewHTTPProvider(logger *slog.Logger, apiURL, apiKey string, httpClient *http.Client) *HTTPProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{
		logger:     logger.With("provider", "http"),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

type sendRequestBody struct {
	Sender     string   `json:"sender"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

type sendSuccessResponse struct {
	Messages []sentMessageDetail `json:"messages"`
	Status   int                 `json:"status"`
	Message  string              `json:"message"`
}

type sentMessageDetail struct {
	ID        int64  `json:"id"`
	Recipient string `json:"recipient"`
	Status    int    `json:"status"`
}

type sendErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (p *HTTPProvider) Send(ctx context.Context, request SendRequest) (*SendResponse, error) {
	reqBody := sendRequestBody{
		Sender:     request.SenderID,
		Body:       request.Content,
		Recipients: []string{request.Recipient},
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to provider: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &SendResponse{
			Success:      false,
			StatusCode:   httpResp.StatusCode,
			ErrorMessage: fmt.Sprintf("failed to read provider response body: %v", err),
			ProviderName: p.GetName(),
		}, fmt.Errorf("provider send failed (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		var success sendSuccessResponse
		providerMsgID := ""
		if err := json.Unmarshal(respBytes, &success); err != nil {
			p.logger.WarnContext(ctx, "Sent SMS but could not parse provider success response",
				"status_code", httpResp.StatusCode, "error", err)
		} else if len(success.Messages) > 0 {
			providerMsgID = fmt.Sprintf("%d", success.Messages[0].ID)
		}

		p.logger.InfoContext(ctx, "SMS submitted to provider",
			"recipient", request.Recipient, "provider_message_id", providerMsgID)
		return &SendResponse{
			ProviderMessageID: providerMsgID,
			Success:           true,
			StatusCode:        httpResp.StatusCode,
			ProviderName:      p.GetName(),
		}, nil
	}

	errMsg := fmt.Sprintf("provider send failed: status %d", httpResp.StatusCode)
	var provErr sendErrorResponse
	if err := json.Unmarshal(respBytes, &provErr); err == nil && provErr.Message != "" {
		errMsg = fmt.Sprintf("provider send failed: status %d, message: %s", httpResp.StatusCode, provErr.Message)
	}

	p.logger.WarnContext(ctx, "Provider send failed",
		"status_code", httpResp.StatusCode, "recipient", request.Recipient, "error_message", errMsg)
	return &SendResponse{
		Success:      false,
		StatusCode:   httpResp.StatusCode,
		ErrorMessage: errMsg,
		ProviderName: p.GetName(),
	}, fmt.Errorf("%s", errMsg)
}

func (p *HTTPProvider) GetName() string {
	return "http"
}
