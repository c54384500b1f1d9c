package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order is a gateway order the client completes checkout against.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// HTTPGateway creates orders through the gateway's REST API using basic auth.
type HTTPGateway struct {
	baseURL  string
	keyID    string
	secret   string
	currency string
	client   *http.Client
}

func NewHTTPGateway(baseURL, keyID, secret string) *HTTPGateway {
	return &HTTPGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		keyID:    keyID,
		secret:   secret,
		currency: "INR",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// CreateOrder registers an order for amount (minor units) tagged with metadata.
func (g *HTTPGateway) CreateOrder(ctx context.Context, amount int64, metadata map[string]string) (Order, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: g.currency,
		Receipt:  uuid.NewString(),
		Notes:    metadata,
	})
	if err != nil {
		return Order{}, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.secret)

	res, err := g.client.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Order{}, fmt.Errorf("create order: gateway status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var order Order
	if err := json.NewDecoder(res.Body).Decode(&order); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("create order: gateway returned no order id")
	}
	return order, nil
}
