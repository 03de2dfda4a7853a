package streaming

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// WebhookNotifier POSTs alert payloads to a configured URL. Delivery is
// best effort and rate limited; failures are reported to the caller for
// logging but never retried here.
type WebhookNotifier struct {
	url     string
	secret  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewWebhookNotifier builds a notifier. rps bounds outbound POST rate.
func NewWebhookNotifier(url, secret string, rps float64, logger *zap.Logger) *WebhookNotifier {
	if rps <= 0 {
		rps = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logger,
	}
}

// Notify serializes the alert and POSTs it. A rate-limit drop counts as a
// delivery failure so operators can see sustained overload.
func (n *WebhookNotifier) Notify(ctx context.Context, a *anomaly.Alert) error {
	if !n.limiter.Allow() {
		return errors.NewDeliveryError("webhook", "rate limit exceeded, alert dropped")
	}

	body, err := json.Marshal(a.ToDict())
	if err != nil {
		return errors.Wrap(err, "marshaling alert payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", n.sign(body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewDeliveryError("webhook",
			fmt.Sprintf("webhook returned status %d", resp.StatusCode))
	}

	n.logger.Debug("webhook delivered",
		zap.Int64("alert_id", a.AlertID),
		zap.Int("status", resp.StatusCode))
	return nil
}

func (n *WebhookNotifier) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
