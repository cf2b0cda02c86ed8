package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestRESTSprintLifecycle(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	session := createSprint(t, server, "u1")
	base := server.URL + "/v1/sprints/" + session.ID

	status, body := call(t, http.MethodPost, base+"/interactions", "u1", map[string]any{
		"questionId":     session.QuestionIDs[0],
		"selectedOption": correctOption(session.QuestionIDs[0]),
		"timeMs":         15000,
	})
	if status != http.StatusOK || body["isCorrect"] != true {
		t.Fatalf("record: status=%d body=%+v", status, body)
	}

	status, body = call(t, http.MethodGet, base+"/summary", "u1", nil)
	if status != http.StatusOK || body["final"] != false {
		t.Fatalf("provisional summary: status=%d body=%+v", status, body)
	}

	status, body = call(t, http.MethodPost, base+"/complete", "u1", nil)
	if status != http.StatusOK || body["final"] != true {
		t.Fatalf("complete: status=%d body=%+v", status, body)
	}

	status, body = call(t, http.MethodGet, base+"/review?status=NOT_ATTEMPTED", "u1", nil)
	items, _ := body["items"].([]any)
	if status != http.StatusOK || len(items) != 2 {
		t.Fatalf("review: status=%d items=%d", status, len(items))
	}

	status, body = call(t, http.MethodPost, base+"/retry", "u1", nil)
	if status != http.StatusCreated || body["retryOf"] != session.ID {
		t.Fatalf("retry: status=%d body=%+v", status, body)
	}
}

func TestRESTErrorMapping(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	session := createSprint(t, server, "u1")
	base := server.URL + "/v1/sprints/" + session.ID

	tests := []struct {
		name   string
		method string
		url    string
		user   string
		body   any
		status int
		kind   string
	}{
		{name: "no identity", method: http.MethodGet, url: base, status: http.StatusUnauthorized, kind: "unauthenticated"},
		{name: "other owner", method: http.MethodGet, url: base, user: "u2", status: http.StatusForbidden, kind: "forbidden"},
		{name: "unknown sprint", method: http.MethodGet, url: server.URL + "/v1/sprints/nope", user: "u1", status: http.StatusNotFound, kind: "not_found"},
		{name: "bad config", method: http.MethodPost, url: server.URL + "/v1/sprints", user: "u1", body: map[string]any{"subject": "", "questionCount": 3}, status: http.StatusBadRequest, kind: "validation"},
		{name: "empty pool", method: http.MethodPost, url: server.URL + "/v1/sprints", user: "u1", body: map[string]any{"subject": "HISTORY", "questionCount": 3}, status: http.StatusNotFound, kind: "not_found"},
		{name: "negative time", method: http.MethodPost, url: base + "/interactions", user: "u1", body: map[string]any{"questionId": session.QuestionIDs[0], "skip": true, "timeMs": -1}, status: http.StatusBadRequest, kind: "validation"},
		{name: "oversized body", method: http.MethodPost, url: server.URL + "/v1/sprints", user: "u1", body: map[string]any{"subject": "MATH", "questionCount": 3, "topics": []string{strings.Repeat("x", maxBodyBytes)}}, status: http.StatusBadRequest, kind: "validation"},
		{name: "oversized interaction", method: http.MethodPost, url: base + "/interactions", user: "u1", body: map[string]any{"questionId": strings.Repeat("q", maxBodyBytes), "skip": true}, status: http.StatusBadRequest, kind: "validation"},
		{name: "bad filter", method: http.MethodGet, url: base + "/review?status=MAYBE", user: "u1", status: http.StatusBadRequest, kind: "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, tt.method, tt.url, tt.user, tt.body)
			if status != tt.status || body["error"] != tt.kind {
				t.Fatalf("expected %d/%s, got %d %+v", tt.status, tt.kind, status, body)
			}
		})
	}

	// abandon then record is a state conflict
	if status, _ := call(t, http.MethodPost, base+"/abandon", "u1", nil); status != http.StatusOK {
		t.Fatalf("abandon: status=%d", status)
	}
	status, body := call(t, http.MethodPost, base+"/interactions", "u1", map[string]any{
		"questionId": session.QuestionIDs[0], "skip": true, "timeMs": 10,
	})
	if status != http.StatusConflict || body["error"] != "state" {
		t.Fatalf("expected 409 after abandon, got %d %+v", status, body)
	}
}

func call(t *testing.T, method, url, user string, payload any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}
