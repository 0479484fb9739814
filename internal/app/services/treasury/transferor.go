// Package treasury carries campaign custody out of the process: the
// transferor executes the external payout step of a withdrawal, and the
// settlement poller recovers withdrawals a crash left pending.
package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/presale_layer/pkg/logger"
)

// Transferor executes the external payout of a withdrawal and returns the
// transfer reference. The call happens outside the campaign service mutex;
// implementations must be safe for concurrent use.
type Transferor interface {
	Transfer(ctx context.Context, campaignID, to string, amount int64) (txID string, err error)
}

// TransferorFunc adapts a function to the Transferor interface.
type TransferorFunc func(ctx context.Context, campaignID, to string, amount int64) (string, error)

func (f TransferorFunc) Transfer(ctx context.Context, campaignID, to string, amount int64) (string, error) {
	return f(ctx, campaignID, to, amount)
}

// LocalTransferor settles payouts in-process with a generated reference.
// It backs development setups with no payout endpoint configured.
type LocalTransferor struct{}

// NewLocalTransferor returns a transferor that always succeeds.
func NewLocalTransferor() *LocalTransferor { return &LocalTransferor{} }

func (t *LocalTransferor) Transfer(context.Context, string, string, int64) (string, error) {
	return uuid.NewString(), nil
}

// HTTPTransferor POSTs payouts to an external settlement endpoint.
type HTTPTransferor struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPTransferor constructs a transferor for the given endpoint.
func NewHTTPTransferor(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPTransferor, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("payout endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse payout endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("treasury-transferor")
	}
	return &HTTPTransferor{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

func (t *HTTPTransferor) Transfer(ctx context.Context, campaignID, to string, amount int64) (string, error) {
	payload := struct {
		CampaignID string `json:"campaign_id"`
		To         string `json:"to"`
		Amount     int64  `json:"amount"`
	}{campaignID, to, amount}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build payout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("payout request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		TxID  string `json:"tx_id"`
		Error string `json:"error"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode payout response: %w", decodeErr)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error != "" {
			return "", fmt.Errorf("payout rejected: %s", result.Error)
		}
		return "", fmt.Errorf("payout status %d", resp.StatusCode)
	}
	if result.Error != "" {
		return "", fmt.Errorf("payout rejected: %s", result.Error)
	}
	if result.TxID == "" {
		return "", fmt.Errorf("payout response missing tx_id")
	}
	return result.TxID, nil
}
