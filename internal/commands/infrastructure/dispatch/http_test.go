package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	commands "gse-control/internal/commands/domain"
)

func TestNewHTTPDispatcherTimeout(t *testing.T) {
	d, err := NewHTTPDispatcher("http://controller.local", 3*time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPDispatcher: %v", err)
	}
	if d.client.Timeout != 3*time.Second {
		t.Fatalf("client timeout = %s, want 3s", d.client.Timeout)
	}

	d, err = NewHTTPDispatcher("http://controller.local", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPDispatcher: %v", err)
	}
	if d.client.Timeout != 10*time.Second {
		t.Fatalf("default client timeout = %s, want 10s", d.client.Timeout)
	}

	if _, err := NewHTTPDispatcher("", time.Second, zerolog.Nop()); err == nil {
		t.Fatal("empty base url accepted")
	}
}

func TestDispatchPostsToDeviceEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d, err := NewHTTPDispatcher(server.URL, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPDispatcher: %v", err)
	}
	cmd := commands.Command{CommandID: "cmd-1", DeviceID: "GPU-001", CommandType: "set_voltage"}
	if err := d.Dispatch(context.Background(), cmd); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if gotPath != "/devices/GPU-001/commands" {
		t.Fatalf("posted to %q", gotPath)
	}
}

func TestDispatchControllerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d, err := NewHTTPDispatcher(server.URL, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPDispatcher: %v", err)
	}
	cmd := commands.Command{CommandID: "cmd-1", DeviceID: "GPU-001", CommandType: "set_voltage"}
	if err := d.Dispatch(context.Background(), cmd); err == nil {
		t.Fatal("controller 502 not surfaced")
	}
}
