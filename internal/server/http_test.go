package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"RevLedger/internal/event"
	"RevLedger/internal/ingestion"
	"RevLedger/internal/server"
)

func newTestServer(t *testing.T, deps *server.ServerDeps) *httptest.Server {
	t.Helper()
	srv := server.NewHTTPServer(":0", deps)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAdminAuth(t *testing.T) {
	eventChan := make(chan event.Event, 4)
	deps := &server.ServerDeps{
		IngestService: ingestion.NewAdminIngestService(eventChan),
		AdminToken:    "operator-secret",
		StartTime:     time.Now(),
	}
	ts := newTestServer(t, deps)

	body := map[string]interface{}{"kind": "ACME-2026", "total_supply_cap": 10000, "sequence": 1}

	resp := postJSON(t, ts.URL+"/v1/admin/classes", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/v1/admin/classes", "wrong-token", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: got %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/v1/admin/classes", "operator-secret", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("valid token: got %d, want 202", resp.StatusCode)
	}

	select {
	case evt := <-eventChan:
		created, ok := evt.(*event.ShareClassCreated)
		if !ok {
			t.Fatalf("expected ShareClassCreated, got %T", evt)
		}
		if created.Kind != "ACME-2026" || created.TotalSupplyCap != 10000 {
			t.Errorf("unexpected event fields: %+v", created)
		}
	default:
		t.Error("no event injected")
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	eventChan := make(chan event.Event, 1)
	deps := &server.ServerDeps{
		IngestService: ingestion.NewAdminIngestService(eventChan),
		StartTime:     time.Now(),
	}
	ts := newTestServer(t, deps)

	resp := postJSON(t, ts.URL+"/v1/admin/mint", "anything", map[string]interface{}{})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("got %d, want 403 when no admin token configured", resp.StatusCode)
	}
}

func TestInjectMint_GeneratesShareID(t *testing.T) {
	eventChan := make(chan event.Event, 1)
	deps := &server.ServerDeps{
		IngestService: ingestion.NewAdminIngestService(eventChan),
		AdminToken:    "operator-secret",
		StartTime:     time.Now(),
	}
	ts := newTestServer(t, deps)

	resp := postJSON(t, ts.URL+"/v1/admin/mint", "operator-secret", map[string]interface{}{
		"kind":     "ACME-2026",
		"amount":   7500,
		"sequence": 2,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("got %d, want 202", resp.StatusCode)
	}

	var body struct {
		Accepted bool   `json:"accepted"`
		ShareID  string `json:"share_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	generated, err := uuid.Parse(body.ShareID)
	if err != nil {
		t.Fatalf("response share_id not a uuid: %q", body.ShareID)
	}

	evt := <-eventChan
	minted, ok := evt.(*event.SharesMinted)
	if !ok {
		t.Fatalf("expected SharesMinted, got %T", evt)
	}
	if minted.ShareID != generated {
		t.Errorf("event share ID %s != response share ID %s", minted.ShareID, generated)
	}
	if minted.Amount != 7500 || minted.Sequence != 2 {
		t.Errorf("unexpected event fields: %+v", minted)
	}
}

func TestInjectDeposit_RejectsZeroAmount(t *testing.T) {
	eventChan := make(chan event.Event, 1)
	deps := &server.ServerDeps{
		IngestService: ingestion.NewAdminIngestService(eventChan),
		AdminToken:    "operator-secret",
		StartTime:     time.Now(),
	}
	ts := newTestServer(t, deps)

	resp := postJSON(t, ts.URL+"/v1/admin/deposits", "operator-secret", map[string]interface{}{
		"kind":        "ACME-2026",
		"reward_kind": "rent",
		"amount":      0,
		"sequence":    3,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got %d, want 400 for zero amount", resp.StatusCode)
	}
	if len(eventChan) != 0 {
		t.Error("rejected deposit must not inject an event")
	}
}

func TestGetShare_InvalidID(t *testing.T) {
	deps := &server.ServerDeps{StartTime: time.Now()}
	ts := newTestServer(t, deps)

	resp, err := http.Get(ts.URL + "/v1/shares/not-a-uuid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got %d, want 400", resp.StatusCode)
	}
}
