// Package dispatch forwards admitted commands to device controllers over
// HTTP, behind a circuit breaker so a dead controller cannot back up the
// command path.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	commands "gse-control/internal/commands/domain"
	"gse-control/internal/observability/metrics"
)

// ErrControllerUnavailable is returned while the breaker is open.
var ErrControllerUnavailable = errors.New("dispatch: device controller unavailable")

// HTTPDispatcher posts commands to a controller endpoint per device.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewHTTPDispatcher constructs a dispatcher for the controller base URL.
// A non-positive timeout falls back to 10s.
func NewHTTPDispatcher(baseURL string, timeout time.Duration, logger zerolog.Logger) (*HTTPDispatcher, error) {
	if baseURL == "" {
		return nil, errors.New("dispatch: empty base url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "device-controller",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("dispatch breaker state change")
		},
	}
	return &HTTPDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}, nil
}

// Dispatch posts the command to the device's controller. The caller records
// the final outcome when the device reports back; dispatch errors surface
// immediately.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, cmd commands.Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	_, err = d.breaker.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/devices/%s/commands", d.baseURL, cmd.DeviceID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("dispatch: controller returned %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrControllerUnavailable
		}
		metrics.IncDispatchResult(metrics.DispatchResultTimeout)
		d.logger.Error().
			Err(err).
			Str("command_id", cmd.CommandID).
			Str("device_id", cmd.DeviceID).
			Msg("command dispatch failed")
		return err
	}

	d.logger.Debug().
		Str("command_id", cmd.CommandID).
		Str("device_id", cmd.DeviceID).
		Str("command_type", cmd.CommandType).
		Msg("command dispatched")
	return nil
}
