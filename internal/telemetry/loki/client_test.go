package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode push body: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestPushEventJSON_Labels(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	raw := []byte(`{"eventType":"session.denied","orgId":"org-1","userId":"u-1","reason":"user_banned","source":"guard","createdAt":"2026-03-01T12:00:00Z"}`)

	if err := PushEventJSON(context.Background(), srv.URL+"/", raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	labels := got.Streams[0].Stream
	want := map[string]string{"job": "pawplanner", "org_id": "org-1", "event_type": "session.denied", "source": "guard"}
	for k, v := range want {
		if labels[k] != v {
			t.Errorf("label %s = %q, want %q", k, labels[k], v)
		}
	}
	if _, ok := labels["user_id"]; ok {
		t.Error("user_id must not be a label")
	}
	values := got.Streams[0].Values
	wantTS := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	if len(values) != 1 || values[0][0] != jsonNumber(wantTS) || values[0][1] != string(raw) {
		t.Errorf("values = %v", values)
	}
}

func TestPushEventJSON_UnparseableLine(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	if err := PushEventJSON(context.Background(), srv.URL, []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	labels := got.Streams[0].Stream
	if len(labels) != 1 || labels["job"] != "pawplanner" {
		t.Errorf("labels = %v, want only job", labels)
	}
	if got.Streams[0].Values[0][1] != "not json" {
		t.Errorf("line = %q", got.Streams[0].Values[0][1])
	}
}

func TestPushEvent_SanitizesLabels(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	err := PushEvent(context.Background(), srv.URL, time.Now(), "line", map[string]string{"source": " page gate/v1 ", "empty": "  "})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	labels := got.Streams[0].Stream
	if labels["source"] != "page_gate_v1" {
		t.Errorf("source = %q", labels["source"])
	}
	if _, ok := labels["empty"]; ok {
		t.Error("blank label should be dropped")
	}
}

func TestPushEvent_Non2xx(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest)
	if err := PushEvent(context.Background(), srv.URL, time.Now(), "line", nil); err == nil {
		t.Fatal("non-2xx should return an error")
	}
}

func TestPushEvent_EmptyURL(t *testing.T) {
	if err := PushEvent(context.Background(), "", time.Now(), "line", nil); err == nil {
		t.Fatal("empty base URL should return an error")
	}
}

func jsonNumber(ns int64) string {
	b, _ := json.Marshal(ns)
	return string(b)
}
