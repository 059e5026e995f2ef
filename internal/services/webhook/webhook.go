// Package webhook notifies external endpoints when a sync run finishes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/services/ingest"
)

// EventSyncCompleted is sent after every finished sync run.
const EventSyncCompleted = "sync.completed"

// DefaultRetryDelays are waited before attempts 1..n; the first attempt is immediate.
var DefaultRetryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Payload is the JSON body of every notification.
type Payload struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Service handles webhook notification delivery.
type Service struct {
	urls        []string
	secret      string
	client      *http.Client
	retryDelays []time.Duration

	shutdownCh   chan struct{} // signals pending deliveries to stop
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

var _ ingest.Notifier = (*Service)(nil)

// New creates a webhook service posting to urls. With an empty secret the
// signature header is omitted.
func New(urls []string, secret string) *Service {
	return &Service{
		urls:        urls,
		secret:      secret,
		client:      &http.Client{Timeout: 10 * time.Second},
		retryDelays: DefaultRetryDelays,
		shutdownCh:  make(chan struct{}),
	}
}

// Enabled reports whether any endpoint is configured.
func (s *Service) Enabled() bool { return len(s.urls) > 0 }

// Shutdown signals all pending deliveries to stop and waits for them.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.wg.Wait()
}

// SignPayload creates an HMAC-SHA256 signature for a payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// NotifySyncComplete sends the run summary to every endpoint. Delivery
// happens asynchronously with retries; the call returns immediately.
func (s *Service) NotifySyncComplete(_ context.Context, summary ingest.RunSummary) {
	s.notify(EventSyncCompleted, summary)
}

func (s *Service) notify(event string, data interface{}) {
	if !s.Enabled() {
		return
	}

	payloadJSON, err := json.Marshal(Payload{Event: event, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}

	for _, url := range s.urls {
		s.wg.Add(1)
		// Fire and forget: each delivery runs in its own goroutine
		go func(url string) {
			defer s.wg.Done()
			s.deliverWithRetry(url, event, payloadJSON)
		}(url)
	}
}

// deliverWithRetry attempts delivery once per configured delay, stopping
// early on success or shutdown.
func (s *Service) deliverWithRetry(url, event string, payloadJSON []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var lastErr string
	for attempt := 0; attempt < len(s.retryDelays); attempt++ {
		if d := s.retryDelays[attempt]; d > 0 {
			select {
			case <-s.shutdownCh:
				log.Printf("⚠️  Webhook delivery aborted due to shutdown: %s → %s", event, url)
				return
			case <-ctx.Done():
				log.Printf("⚠️  Webhook delivery timed out: %s → %s", event, url)
				return
			case <-time.After(d):
			}
		}

		statusCode, err := s.deliver(ctx, url, payloadJSON)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			log.Printf("✅ Webhook delivered: %s → %s (attempt %d)", event, url, attempt+1)
			return
		}
		if err != nil {
			lastErr = err.Error()
		} else {
			lastErr = fmt.Sprintf("HTTP %d", statusCode)
		}
		log.Printf("⚠️  Webhook delivery failed (attempt %d/%d): %s → %s: %s",
			attempt+1, len(s.retryDelays), event, url, lastErr)
	}
	log.Printf("❌ Webhook delivery failed permanently: %s → %s: %s", event, url, lastErr)
}

// deliver sends a single webhook HTTP request.
func (s *Service) deliver(ctx context.Context, url string, payloadJSON []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HoloSearchAPI-Webhook/1.0")
	if s.secret != "" {
		req.Header.Set("X-Webhook-Signature", SignPayload(payloadJSON, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
