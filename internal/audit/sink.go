// Package audit emits one structured record per verify and settle attempt
// to an external row store. The sink is best-effort: failures are logged
// and never surface to the request path.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// TableVerify and TableSettle are the row-store tables.
	TableVerify = "verify_requests"
	TableSettle = "settle_transactions"

	defaultTimeout = 10 * time.Second
)

// VerifyRecord is one row per verification attempt, success or failure.
type VerifyRecord struct {
	ID              string `json:"id"`
	Payer           string `json:"payer"`
	Recipient       string `json:"recipient"`
	Token           string `json:"token"`
	TokenSymbol     string `json:"token_symbol"`
	Amount          string `json:"amount"`
	AmountFormatted string `json:"amount_formatted"`
	Nonce           string `json:"nonce"`
	Network         string `json:"network"`
	ChainID         int64  `json:"chain_id"`
	IsValid         bool   `json:"is_valid"`
	InvalidReason   string `json:"invalid_reason,omitempty"`
	DurationMillis  int64  `json:"duration_ms"`
	Timestamp       string `json:"timestamp"`
}

// SettleRecord is one row per settlement attempt.
type SettleRecord struct {
	ID              string `json:"id"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Payer           string `json:"payer"`
	Recipient       string `json:"recipient"`
	Token           string `json:"token"`
	TokenSymbol     string `json:"token_symbol"`
	Amount          string `json:"amount"`
	AmountFormatted string `json:"amount_formatted"`
	Nonce           string `json:"nonce"`
	Network         string `json:"network"`
	ChainID         int64  `json:"chain_id"`
	BlockNumber     uint64 `json:"block_number,omitempty"`
	GasUsed         uint64 `json:"gas_used,omitempty"`
	GasPrice        string `json:"gas_price,omitempty"`
	Success         bool   `json:"success"`
	ErrorReason     string `json:"error_reason,omitempty"`
	TxTimeMillis    int64  `json:"transaction_time_ms,omitempty"`
	TotalTimeMillis int64  `json:"total_time_ms"`
	Timestamp       string `json:"timestamp"`
}

// Sink accepts audit rows.
type Sink interface {
	Insert(ctx context.Context, table string, row interface{})
}

// NewRecordID returns a fresh row identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// Now returns the row timestamp format used across tables.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// HTTPSink posts rows to a Supabase-style REST endpoint
// (POST {baseURL}/rest/v1/{table}). Writes happen on the caller's
// goroutine only up to JSON encoding; the request itself is fired async.
type HTTPSink struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewHTTPSink builds a sink for the given endpoint.
func NewHTTPSink(baseURL, apiKey string, log *logrus.Logger) *HTTPSink {
	return &HTTPSink{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
}

// Insert writes one row, asynchronously. Errors are logged, never returned:
// the audit store must not be able to fail a payment.
func (s *HTTPSink) Insert(ctx context.Context, table string, row interface{}) {
	body, err := json.Marshal(row)
	if err != nil {
		s.log.WithError(err).WithField("table", table).Error("audit: failed to encode row")
		return
	}

	go func() {
		reqCtx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		url := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			s.log.WithError(err).WithField("table", table).Error("audit: failed to build request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.WithError(err).WithField("table", table).Error("audit: insert failed")
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			s.log.WithFields(logrus.Fields{
				"table":  table,
				"status": resp.StatusCode,
			}).Error("audit: insert rejected")
		}
	}()
}

// NopSink discards rows; used when no audit endpoint is configured.
type NopSink struct{}

func (NopSink) Insert(context.Context, string, interface{}) {}
