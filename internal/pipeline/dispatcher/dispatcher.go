// Package dispatcher delivers accepted signal records to the ingestion
// endpoint.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/config"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

// maxResponseBytes caps how much of a response body is read and logged.
const maxResponseBytes = 1 << 20

// ErrNon2xx is matched by errors.Is when the endpoint answered with a status
// outside the 2xx range.
var ErrNon2xx = errors.New("non-2xx response")

// DispatchError reports a failed delivery. StatusCode and Body are set when
// the endpoint answered.
type DispatchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dispatch failed: %v", e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatcher POSTs records as JSON. A single attempt is made per record.
type Dispatcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Entry
}

// New builds a dispatcher from the ingestion configuration. A zero
// requests-per-second setting disables the outbound limiter.
func New(cfg config.IngestionConfig, log *logger.Log) *Dispatcher {
	if log == nil {
		log = logger.GetLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultIngestionTimeout
	}

	d := &Dispatcher{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		log:    log.WithComponent("dispatcher"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.BurstSize
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return d
}

// Send POSTs rec and returns the decoded response body. Bodies that are not
// a JSON object are returned as {"raw": body}.
func (d *Dispatcher) Send(ctx context.Context, rec models.SignalRecord) (map[string]interface{}, error) {
	start := time.Now()
	log := d.log.WithFields(logger.Fields{"coin": rec.Coin, "type": rec.Type, "url": d.url})

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, d.fail(log, &DispatchError{Err: fmt.Errorf("rate limiter: %w", err)})
		}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, d.fail(log, &DispatchError{Err: fmt.Errorf("marshal signal: %w", err)})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return nil, d.fail(log, &DispatchError{Err: fmt.Errorf("build request: %w", err)})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, d.fail(log, &DispatchError{Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, d.fail(log, &DispatchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, d.fail(log, &DispatchError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        ErrNon2xx,
		})
	}

	result := decodeBody(body)
	logger.LogPerformanceEntry(log, "dispatcher", "send", time.Since(start), logger.Fields{"status": resp.StatusCode})
	log.WithFields(logger.Fields{"status": resp.StatusCode}).Info("signal dispatched")
	return result, nil
}

func (d *Dispatcher) fail(log *logger.Entry, err *DispatchError) error {
	fields := logger.Fields{}
	if err.StatusCode != 0 {
		fields["status"] = err.StatusCode
	}
	if err.Body != "" {
		fields["body"] = err.Body
	}
	log.WithFields(fields).WithError(err.Err).Error("failed to dispatch signal")
	return err
}

func decodeBody(body []byte) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil || out == nil {
		return map[string]interface{}{"raw": string(body)}
	}
	return out
}
