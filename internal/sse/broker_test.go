package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "build.started", Data: map[string]string{"trigger": "watch"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: build.started") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"trigger":"watch"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishBuildEvent_ReloadThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First success should trigger a reload.
	b.PublishBuildEvent(BuildSucceeded, map[string]any{"modules": 3})
	// Second success immediately after should NOT trigger another reload.
	b.PublishBuildEvent(BuildSucceeded, map[string]any{"modules": 3})

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	reloadCount := 0
	buildCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "event: reload") {
				reloadCount++
			} else {
				buildCount++
			}
		default:
			break loop
		}
	}

	if buildCount != 2 {
		t.Errorf("build events = %d, want 2", buildCount)
	}
	if reloadCount != 1 {
		t.Errorf("reload events = %d, want 1 (throttled)", reloadCount)
	}
}

func TestPublishBuildEvent_FailureDoesNotReload(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBuildEvent(BuildFailed, map[string]any{"error": "unresolved module"})

	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "event: reload") {
				t.Error("reload published for failed build")
			}
			if strings.Contains(s, "build.failed") && !strings.Contains(s, "unresolved module") {
				t.Errorf("failure detail missing in %q", s)
			}
		default:
			return
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the handler to subscribe, then publish.
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.Publish(Event{Type: "build.started", Data: map[string]string{}})

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "build.started") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := NewBroker(0)
	b.Close()
	b.Close()
	if b.ClientCount() != 0 {
		t.Error("expected 0 clients after close")
	}
	b.Publish(Event{Type: "build.started"})
	b.PublishBuildEvent(BuildSucceeded, nil)
}
