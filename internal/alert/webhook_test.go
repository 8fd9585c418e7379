package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/termwatch/internal/model"
)

func failingResult() *model.Result {
	return &model.Result{
		Status: model.Fail,
		Score:  0,
		Violations: []model.Violation{
			{Line: 1, Kind: model.ForbiddenTerm, Terms: []model.Occurrence{{Term: "พี่"}}, Message: "used forbidden term: พี่"},
			{Line: 3, Kind: model.DisallowedTerm, Terms: []model.Occurrence{{Term: "ป้า"}}, Message: "used unapproved terms: ป้า"},
			{Line: 4, Kind: model.ForbiddenTerm, Terms: []model.Occurrence{{Term: "พี่"}}, Message: "used forbidden term: พี่"},
		},
		TaxonomyHash: "sha256:abc",
	}
}

func TestEventFromResult(t *testing.T) {
	e := EventFromResult("call-001.txt", "sha256:def", failingResult())

	if e.Status != "FAIL" || e.Score != 0 {
		t.Errorf("unexpected verdict %+v", e)
	}
	if len(e.Kinds) != 2 || e.Kinds[0] != EventForbidden || e.Kinds[1] != EventDisallowed {
		t.Errorf("kinds = %v", e.Kinds)
	}
	if len(e.Messages) != 3 {
		t.Errorf("messages = %v", e.Messages)
	}
	if e.Timestamp == "" {
		t.Error("expected timestamp")
	}
}

func TestDispatchMatchesStatus(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{EventFail}},
	})

	d.Dispatch(EventFromResult("call.txt", "", failingResult()))
	d.Wait()

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchMatchesKind(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{EventForbidden}},
	})

	d.Dispatch(EventFromResult("call.txt", "", failingResult()))
	d.Dispatch(EventFromResult("other.txt", "", &model.Result{
		Status:     model.Fail,
		Violations: []model.Violation{{Line: 1, Kind: model.DisallowedTerm}},
	}))
	d.Wait()

	if called.Load() != 1 {
		t.Errorf("expected 1 call for forbidden-term subscription, got %d", called.Load())
	}
}

func TestDispatchSkipsNonMatching(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{EventFail}},
	})

	d.Dispatch(EventFromResult("call.txt", "", &model.Result{Status: model.Pass, Score: 1}))
	d.Wait()

	if called.Load() != 0 {
		t.Errorf("expected 0 calls for a passing transcript, got %d", called.Load())
	}
}

func TestDispatchMultipleWebhooks(t *testing.T) {
	var called atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	srv1 := httptest.NewServer(handler)
	defer srv1.Close()
	srv2 := httptest.NewServer(handler)
	defer srv2.Close()

	d := NewDispatcher([]AlertConfig{
		{URL: srv1.URL, Format: "generic", Events: []string{EventFail}},
		{URL: srv2.URL, Format: "slack", Events: []string{EventDisallowed, EventForbidden}},
	})

	d.Dispatch(EventFromResult("call.txt", "", failingResult()))
	d.Wait()

	if called.Load() != 2 {
		t.Errorf("expected 2 calls (both webhooks match), got %d", called.Load())
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Status: "FAIL"})
	if err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := Send(AlertConfig{URL: srv.URL, Format: "generic"}, AlertEvent{Status: "FAIL"})
	if err == nil {
		t.Error("expected error on 400, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt (no retry on 4xx), got %d", attempts.Load())
	}
}

func TestSendHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := AlertConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer qa"}}
	if err := Send(cfg, AlertEvent{Status: "FAIL"}); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer qa" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestFormatGenericJSON(t *testing.T) {
	event := EventFromResult("call-001.txt", "sha256:def", failingResult())

	data, err := FormatPayload("generic", event)
	if err != nil {
		t.Fatal(err)
	}

	var parsed AlertEvent
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("generic format is not valid JSON: %v", err)
	}
	if parsed.Transcript != "call-001.txt" {
		t.Errorf("expected transcript call-001.txt, got %s", parsed.Transcript)
	}
	if parsed.Status != "FAIL" {
		t.Errorf("expected status FAIL, got %s", parsed.Status)
	}
}

func TestFormatSlackBlockKit(t *testing.T) {
	data, err := FormatPayload("slack", EventFromResult("call.txt", "", failingResult()))
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("slack format is not valid JSON: %v", err)
	}

	blocks, ok := parsed["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in slack payload")
	}
	if len(blocks) < 2 {
		t.Fatalf("expected at least 2 blocks, got %d", len(blocks))
	}

	header, _ := blocks[0].(map[string]any)
	if header["type"] != "header" {
		t.Errorf("expected header block, got %s", header["type"])
	}

	section, _ := blocks[1].(map[string]any)
	fields, ok := section["fields"].([]any)
	if !ok || len(fields) < 4 {
		t.Errorf("expected at least 4 fields in section, got %v", fields)
	}
}

func TestFormatPagerDutySeverity(t *testing.T) {
	tests := []struct {
		name   string
		result *model.Result
		want   string
	}{
		{"forbidden", failingResult(), "critical"},
		{"disallowed", &model.Result{Status: model.Fail, Violations: []model.Violation{{Kind: model.DisallowedTerm}}}, "error"},
		{"pass", &model.Result{Status: model.Pass, Score: 1}, "info"},
	}

	for _, tt := range tests {
		data, err := FormatPayload("pagerduty", EventFromResult("call.txt", "", tt.result))
		if err != nil {
			t.Fatal(err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("%s: pagerduty format is not valid JSON: %v", tt.name, err)
		}
		if parsed["event_action"] != "trigger" {
			t.Errorf("%s: expected event_action trigger, got %v", tt.name, parsed["event_action"])
		}
		payload, _ := parsed["payload"].(map[string]any)
		if payload["severity"] != tt.want {
			t.Errorf("%s: severity = %v, want %s", tt.name, payload["severity"], tt.want)
		}
		if payload["source"] != "termwatch" {
			t.Errorf("%s: source = %v", tt.name, payload["source"])
		}
	}
}

func TestNewDispatcherNilOnEmpty(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Error("expected nil dispatcher for empty configs")
	}
	if d := NewDispatcher([]AlertConfig{}); d != nil {
		t.Error("expected nil dispatcher for zero-length configs")
	}
}

func TestSendContextCancelledBetweenRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SendContext(ctx, AlertConfig{URL: srv.URL}, AlertEvent{Status: "FAIL"})
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}
