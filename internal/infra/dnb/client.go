package dnb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"payment_notification_bot/internal/domain/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrMalformedBody    = errors.New("malformed response body")
)

const maxBodySize = 1 << 20

// Client talks to the DNB open card API. Every request carries a fresh trace id.
type Client struct {
	httpClient      *http.Client
	balanceURL      string
	transactionsURL string
	channel         string
}

func NewClient(balanceURL, transactionsURL, channel string, timeout time.Duration) *Client {
	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		balanceURL:      balanceURL,
		transactionsURL: transactionsURL,
		channel:         channel,
	}
}

type accountRequest struct {
	AccountNumber string `json:"accountNumber"`
}

type balanceResponse struct {
	Balance *json.Number `json:"balance"`
}

// FetchBalance returns the current balance of the card account.
func (c *Client) FetchBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	body, err := c.post(ctx, c.balanceURL, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}

	var resp balanceResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if resp.Balance == nil {
		return decimal.Zero, fmt.Errorf("%w: no balance field", ErrMalformedBody)
	}
	balance, err := decimal.NewFromString(resp.Balance.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return balance, nil
}

// FetchRecentTransactions returns the latest transactions in the order the API lists them.
// An empty result is not an error. Without a configured endpoint nothing is fetched.
func (c *Client) FetchRecentTransactions(ctx context.Context, accountNumber string) ([]payment.Transaction, error) {
	if c.transactionsURL == "" {
		return []payment.Transaction{}, nil
	}

	body, err := c.post(ctx, c.transactionsURL, accountNumber)
	if err != nil {
		return nil, err
	}
	return decodeTransactions(body)
}

// decodeTransactions accepts either a bare JSON array or {"transactions": [...]}.
func decodeTransactions(body []byte) ([]payment.Transaction, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []payment.Transaction{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if body[0] == '[' {
		var list []payment.Transaction
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return nonNil(list), nil
	}

	var wrapped struct {
		Transactions []payment.Transaction `json:"transactions"`
	}
	if err := dec.Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nonNil(wrapped.Transactions), nil
}

func nonNil(list []payment.Transaction) []payment.Transaction {
	if list == nil {
		return []payment.Transaction{}
	}
	return list
}

func (c *Client) post(ctx context.Context, url, accountNumber string) ([]byte, error) {
	payload, err := json.Marshal(accountRequest{AccountNumber: accountNumber})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dnbapi-Trace-Id", uuid.NewString())
	req.Header.Set("X-Dnbapi-Channel", c.channel)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
