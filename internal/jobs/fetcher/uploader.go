package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/yungbote/cvetrack-backend/internal/pkg/httpx"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type uploadPayload struct {
	CVERecords []json.RawMessage `json:"cve_records"`
}

// StatusError is a non-200 answer from the batch-upload endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("batch upload rejected: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

type Uploader struct {
	apiURL     string
	client     *http.Client
	maxElapsed time.Duration
	log        *logger.Logger

	// initialInterval is shortened by tests.
	initialInterval time.Duration
}

func NewUploader(cfg Config, log *logger.Logger) *Uploader {
	return &Uploader{
		apiURL:          cfg.APIURL,
		client:          &http.Client{Timeout: cfg.HTTPTimeout},
		maxElapsed:      cfg.UploadMaxElapsed,
		log:             log.With("component", "Uploader"),
		initialInterval: 2 * time.Second,
	}
}

// Send posts one batch. Transport errors and retryable statuses are retried with
// exponential backoff; other statuses fail at once.
func (u *Uploader) Send(ctx context.Context, batch []json.RawMessage) error {
	if len(batch) == 0 {
		u.log.Info("No CVE records to send")
		return nil
	}
	body, err := json.Marshal(uploadPayload{CVERecords: batch})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	u.log.Info("Sending CVE records to API", "count", len(batch), "bytes", len(body))
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.initialInterval
	bo.MaxElapsedTime = u.maxElapsed

	op := func() error {
		err := u.post(ctx, body)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !httpx.IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err = backoff.RetryNotify(op, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		u.log.Warn("Batch upload failed, retrying", "error", err, "retry_in", wait)
	})
	if err != nil {
		u.log.Error("Failed to upload CVE records", "count", len(batch), "error", err)
		return err
	}
	u.log.Info("CVE records successfully uploaded", "count", len(batch), "duration", time.Since(start))
	return nil
}

func (u *Uploader) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
}
