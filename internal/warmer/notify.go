package warmer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/metrics"
	"github.com/warmfront/warmfront/internal/store"
)

// Notifier delivers the aggregate failure alert to a webhook. Delivery
// failures are logged and swallowed; alerting never affects warm results.
type Notifier struct {
	client *http.Client
	logger *zap.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Notify sends one JSON payload to the webhook URL.
func (n *Notifier) Notify(ctx context.Context, webhookURL string, st store.Store, message string) {
	if webhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*Cache Warmer Error*\nStore: %s ( %s )\nError: %s", st.Code, st.BaseURL, message),
	})
	if err != nil {
		n.logger.Warn("Failed to marshal webhook payload", zap.Error(err))
		metrics.ObserveNotification("failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.Warn("Failed to build webhook request", zap.Error(err))
		metrics.ObserveNotification("failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Failed to send webhook notification", zap.Error(err))
		metrics.ObserveNotification("failed")
		return
	}
	defer drain(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		n.logger.Warn("Webhook notification rejected",
			zap.String("store", st.Code),
			zap.Int("status", resp.StatusCode),
		)
		metrics.ObserveNotification("rejected")
		return
	}

	n.logger.Info("Webhook notification sent", zap.String("store", st.Code))
	metrics.ObserveNotification("sent")
}
