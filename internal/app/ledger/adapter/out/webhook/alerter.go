package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
)

// Alerter delivers operational alerts (stuck transfers, audit gaps) to a
// webhook endpoint. Delivery failures are logged but never propagate; the
// alert is also always written to the structured log, so a dead endpoint
// cannot hide a stuck transfer.
type Alerter struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewAlerter(url string, logger *zap.Logger) *Alerter {
	return &Alerter{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

type alertPayload struct {
	Event  string         `json:"event"`
	At     time.Time      `json:"at"`
	Fields map[string]any `json:"fields"`
}

func (a *Alerter) Alert(ctx context.Context, event string, fields map[string]any) {
	a.logger.Error("operational alert", zap.String("event", event), zap.Any("fields", fields))
	if a.url == "" {
		return
	}
	if err := a.post(ctx, alertPayload{Event: event, At: time.Now(), Fields: fields}); err != nil {
		a.logger.Error("alert webhook delivery failed", zap.String("event", event), zap.Error(err))
	}
}

func (a *Alerter) post(ctx context.Context, payload alertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("alert endpoint returned %d", resp.StatusCode)
}

// NopAlerter discards alerts; for tests and local runs without an
// endpoint configured.
type NopAlerter struct{}

func (NopAlerter) Alert(context.Context, string, map[string]any) {}

var (
	_ usecase.Alerter = (*Alerter)(nil)
	_ usecase.Alerter = NopAlerter{}
)
