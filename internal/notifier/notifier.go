package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/models"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// Notifier posts result payloads to the caller's evaluation URL. Delivery
// is retried on an exponential schedule (base 1s doubling, capped at 16s
// by default) up to a fixed attempt budget. With the defaults the
// worst-case added latency is 15s of backoff plus five request timeouts.
type Notifier struct {
	attempts    int
	backoffBase time.Duration
	backoffCap  time.Duration
	client      *http.Client
	logger      *logrus.Entry
}

func New(attempts int, backoffBase, backoffCap, timeout time.Duration) *Notifier {
	return &Notifier{
		attempts:    attempts,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.WithModule("notifier"),
	}
}

// Notify delivers the payload. Exhausting the retry budget is reported in
// the NotificationResult; it never fails the request that produced the
// payload.
func (n *Notifier) Notify(ctx context.Context, evaluationURL string, payload *models.ResultPayload) *models.NotificationResult {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.WithError(err).Error("Failed to marshal notification payload")
		return &models.NotificationResult{}
	}

	result := &models.NotificationResult{}

	backoff := retry.WithMaxRetries(uint64(n.attempts-1),
		retry.WithCappedDuration(n.backoffCap, retry.NewExponential(n.backoffBase)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		result.Attempts++

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, evaluationURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			result.StatusCode = 0
			return retry.RetryableError(fmt.Errorf("notification delivery failed: %v", err))
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		result.StatusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retry.RetryableError(fmt.Errorf("notification endpoint returned status: %d", resp.StatusCode))
		}
		return nil
	})

	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"url":      evaluationURL,
			"attempts": result.Attempts,
		}).WithError(err).Warn("Notification delivery exhausted")
		return result
	}

	result.Delivered = true
	n.logger.WithFields(logrus.Fields{
		"url":      evaluationURL,
		"attempts": result.Attempts,
	}).Info("Notification delivered")
	return result
}
