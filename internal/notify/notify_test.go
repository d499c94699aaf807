package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/doorbell-pi/internal/logic"
	"github.com/sweeney/doorbell-pi/internal/mqtt"
)

var testPress = logic.NewPress(logic.SourceGPIO, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))

func TestHTTPGet(t *testing.T) {
	var gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Notify(context.Background(), testPress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method: got %s, want GET", gotMethod)
	}
	if gotBody != "" {
		t.Errorf("GET should send no body, got %q", gotBody)
	}
}

func TestHTTPPost(t *testing.T) {
	var payload mqtt.Payload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, "post", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Notify(context.Background(), testPress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type: got %q", contentType)
	}
	if payload.Doorbell.ID != testPress.ID.String() {
		t.Errorf("body id: got %q, want %q", payload.Doorbell.ID, testPress.ID.String())
	}
	if payload.Doorbell.Event != "PRESS" {
		t.Errorf("body event: got %q", payload.Doorbell.Event)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h, _ := NewHTTP(srv.URL, "GET", time.Second)
	err := h.Notify(context.Background(), testPress)
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status 500 error, got %v", err)
	}
}

func TestHTTPTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	h, _ := NewHTTP(srv.URL, "GET", 50*time.Millisecond)
	start := time.Now()
	if err := h.Notify(context.Background(), testPress); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestHTTPContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, _ := NewHTTP(srv.URL, "GET", time.Second)
	if err := h.Notify(ctx, testPress); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	h, _ := NewHTTP(url, "GET", time.Second)
	if err := h.Notify(context.Background(), testPress); err == nil {
		t.Error("expected connection error")
	}
}

func TestNewHTTPRejectsMethod(t *testing.T) {
	if _, err := NewHTTP("http://localhost", "PUT", 0); err == nil {
		t.Error("expected error for PUT")
	}

	h, err := NewHTTP("http://localhost", "get", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Method != http.MethodGet {
		t.Errorf("method not normalised: %s", h.Method)
	}
	if h.Client.Timeout != DefaultTimeout {
		t.Errorf("timeout: got %v, want %v", h.Client.Timeout, DefaultTimeout)
	}
}

func TestMultiIsolatesErrors(t *testing.T) {
	var calls []string
	record := func(name string, err error) Notifier {
		return Func(func(ctx context.Context, p logic.Press) error {
			calls = append(calls, name)
			return err
		})
	}

	first := errors.New("first failed")
	third := errors.New("third failed")
	m := Multi{record("a", first), record("b", nil), record("c", third)}

	err := m.Notify(context.Background(), testPress)
	if len(calls) != 3 {
		t.Errorf("expected all 3 notifiers called, got %v", calls)
	}
	if !errors.Is(err, first) || !errors.Is(err, third) {
		t.Errorf("expected both errors joined, got %v", err)
	}
}

func TestMultiEmpty(t *testing.T) {
	if err := (Multi{}).Notify(context.Background(), testPress); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMQTTAdapter(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	n := MQTT(pub)

	if err := n.Notify(context.Background(), testPress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.PressCount() != 1 {
		t.Fatalf("expected 1 press published, got %d", pub.PressCount())
	}

	pub.PublishError = errors.New("broker gone")
	if err := n.Notify(context.Background(), testPress); err == nil {
		t.Error("expected publish error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.PublishError = nil
	if err := n.Notify(ctx, testPress); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if pub.PressCount() != 1 {
		t.Errorf("cancelled notify should not publish, got %d presses", pub.PressCount())
	}
}
