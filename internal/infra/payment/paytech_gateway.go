package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finedu-reconciliation/internal/config"
	"finedu-reconciliation/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PayTechGateway)(nil)

// PayTechGateway verifies hosted-checkout transactions against the PayTech
// status API using direct HTTP calls.
type PayTechGateway struct {
	name      string
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewPayTechGateway(cfg *config.GatewayConfig) *PayTechGateway {
	name := cfg.Name
	if name == "" {
		name = "paytech"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PayTechGateway{
		name:      name,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g *PayTechGateway) Name() string { return g.name }

// payTechStatusResponse represents the response from the transaction status API.
type payTechStatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Data    struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
	Message string `json:"message"`
}

// VerifyTransaction implements adapter.PaymentGateway.VerifyTransaction.
func (g *PayTechGateway) VerifyTransaction(ctx context.Context, reference string) (*adapter.GatewayTransaction, error) {
	if reference == "" {
		return nil, fmt.Errorf("paytech: empty transaction reference")
	}

	endpoint := g.baseURL + "/transactions/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("paytech: unknown transaction %q", reference)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paytech: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response payTechStatusResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	if !response.Success {
		return nil, fmt.Errorf("paytech error: %s", response.Message)
	}

	tx := &adapter.GatewayTransaction{
		Reference: response.Data.Reference,
		Amount:    response.Data.Amount,
		Currency:  response.Data.Currency,
		Completed: strings.EqualFold(response.Status, "completed"),
	}
	if tx.Reference == "" {
		tx.Reference = reference
	}
	if !tx.Completed {
		return nil, fmt.Errorf("paytech: transaction %q not completed (status %s)", reference, response.Status)
	}
	return tx, nil
}
