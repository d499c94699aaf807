// Package notify delivers best-effort notifications after each ring.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweeney/doorbell-pi/internal/logic"
	"github.com/sweeney/doorbell-pi/internal/mqtt"
)

// DefaultTimeout bounds a single notification.
const DefaultTimeout = 5 * time.Second

// Notifier is told about every press that rang the chime.
type Notifier interface {
	Notify(ctx context.Context, press logic.Press) error
}

// Func adapts a function to a Notifier.
type Func func(ctx context.Context, press logic.Press) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, press logic.Press) error {
	return f(ctx, press)
}

// Multi fans a press out to every notifier in order. A failing notifier
// does not stop the rest; all errors are joined.
type Multi []Notifier

// Notify calls each notifier with the same context.
func (m Multi) Notify(ctx context.Context, press logic.Press) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, press); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HTTP calls a webhook URL for each press.
// GET sends no body; POST sends the MQTT press payload as JSON.
type HTTP struct {
	URL    string
	Method string
	Client *http.Client
}

// NewHTTP creates a webhook notifier. An empty method means GET.
func NewHTTP(url, method string, timeout time.Duration) (*HTTP, error) {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("notify: unsupported method %q (want GET or POST)", method)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		URL:    url,
		Method: method,
		Client: &http.Client{Timeout: timeout},
	}, nil
}

// Notify performs the request and fails on any non-2xx response.
func (h *HTTP) Notify(ctx context.Context, press logic.Press) error {
	var body io.Reader
	if h.Method == http.MethodPost {
		payload, err := mqtt.FormatPayload(press)
		if err != nil {
			return fmt.Errorf("notify: format payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, body)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "doorbell-pi")

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %s %s: %w", h.Method, h.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: %s %s: unexpected status %d", h.Method, h.URL, resp.StatusCode)
	}
	return nil
}

// MQTT adapts an MQTT publisher to a Notifier.
func MQTT(pub mqtt.Publisher) Notifier {
	return Func(func(ctx context.Context, press logic.Press) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := pub.Publish(press); err != nil {
			return fmt.Errorf("notify: mqtt: %w", err)
		}
		return nil
	})
}
