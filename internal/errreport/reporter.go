// Package errreport forwards sync failures to an external error-logging
// sink. Reporting is fire-and-forget and never fails back into the caller.
package errreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightsched/internal/remote"
)

// Reporter accepts an error, a short context string and the id of the
// request that failed.
type Reporter interface {
	Report(err error, info, requestID string)
}

// Report is the JSON document sent to the sink.
type Report struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	Context     string    `json:"context"`
	RequestID   string    `json:"request_id,omitempty"`
	ServiceName string    `json:"service_name"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// LogReporter only writes failures to the log.
type LogReporter struct{}

// Report logs err. Non-2xx responses are logged as warnings since the
// request itself went through.
func (LogReporter) Report(err error, info, requestID string) {
	logError(err, info, requestID)
}

func logError(err error, info, requestID string) {
	if err == nil {
		return
	}
	if remote.IsStatus(err) {
		log.Warn().Err(err).Str("context", info).Str("request_id", requestID).Msg("Schedule endpoint rejected request")
		return
	}
	log.Error().Err(err).Str("context", info).Str("request_id", requestID).Msg("Schedule request failed")
}

// HTTPOptions configures an HTTPReporter.
type HTTPOptions struct {
	URL         string
	AuthHeader  string
	Token       string
	ServiceName string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// HTTPReporter logs failures and posts them to a remote sink in the
// background.
type HTTPReporter struct {
	opts   HTTPOptions
	client *http.Client

	// mu guards closed and every wg.Add so Flush never races a new report
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHTTPReporter creates a reporter posting to opts.URL.
func NewHTTPReporter(opts HTTPOptions) *HTTPReporter {
	if opts.AuthHeader == "" {
		opts.AuthHeader = remote.DefaultAuthHeader
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPReporter{opts: opts, client: client}
}

// Report logs err and ships it to the sink without waiting for the result.
func (r *HTTPReporter) Report(err error, info, requestID string) {
	if err == nil {
		return
	}
	logError(err, info, requestID)

	rep := Report{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("%T", err),
		Level:       "ERROR",
		Message:     err.Error(),
		Context:     info,
		RequestID:   requestID,
		ServiceName: r.opts.ServiceName,
		OccurredAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		log.Debug().Str("request_id", requestID).Msg("Error reporter flushed, report only logged")
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				log.Error().Interface("panic", p).Msg("Error report panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
		defer cancel()
		if err := r.send(ctx, rep); err != nil {
			log.Warn().Err(err).Str("report_id", rep.ID).Msg("Failed to deliver error report")
		}
	}()
}

func (r *HTTPReporter) send(ctx context.Context, rep Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.opts.Token != "" {
		req.Header.Set(r.opts.AuthHeader, r.opts.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Flush stops sending new reports and waits for in-flight ones until ctx
// expires. Reports after Flush are only logged.
func (r *HTTPReporter) Flush(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Timed out flushing error reports")
	}
}
