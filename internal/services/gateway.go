package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
)

// GatewayResult is a payment processor's answer for one authorization.
type GatewayResult struct {
	Approved  bool   `json:"approved"`
	Reference string `json:"reference,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PaymentGateway authorizes card and wallet payments. Implementations must
// honour ctx cancellation; the caller bounds each call with a timeout.
type PaymentGateway interface {
	Authorize(ctx context.Context, amount float64, method models.PaymentMethod) (GatewayResult, error)
}

// DeclineGateway declines everything. It stands in when no processor is
// configured so card and wallet payments fail closed.
type DeclineGateway struct{}

func (DeclineGateway) Authorize(context.Context, float64, models.PaymentMethod) (GatewayResult, error) {
	return GatewayResult{Approved: false, Message: "no payment gateway configured"}, nil
}

// HTTPGateway talks to a processor over JSON/HTTP.
type HTTPGateway struct {
	URL    string
	Client *http.Client
}

// NewHTTPGateway creates a gateway client for url.
func NewHTTPGateway(url string) *HTTPGateway {
	return &HTTPGateway{URL: url, Client: http.DefaultClient}
}

type authorizeRequest struct {
	Amount float64              `json:"amount"`
	Method models.PaymentMethod `json:"method"`
}

func (g *HTTPGateway) Authorize(ctx context.Context, amount float64, method models.PaymentMethod) (GatewayResult, error) {
	body, err := json.Marshal(authorizeRequest{Amount: amount, Method: method})
	if err != nil {
		return GatewayResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return GatewayResult{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return GatewayResult{}, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return GatewayResult{}, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result GatewayResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return GatewayResult{}, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return result, nil
}
