package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	app "github.com/R3E-Network/presale_layer/internal/app"
	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
)

const testAdminKey = "test-admin-key"

func TestHandlerLifecycle(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))

	ownerToken := issueToken(t, handler, "owner")
	aliceToken := issueToken(t, handler, "alice")
	bobToken := issueToken(t, handler, "bob")
	carolToken := issueToken(t, handler, "carol")
	daveToken := issueToken(t, handler, "dave")

	start := time.Now().UTC().Add(-time.Hour)
	end := start.Add(24 * time.Hour)

	body := marshal(map[string]any{
		"name":              "genesis-sale",
		"start_time":        start.Format(time.RFC3339),
		"end_time":          end.Format(time.RFC3339),
		"max_registrations": 3,
		"registration_fee":  10,
	})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns", ownerToken, body))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create campaign, got %d: %s", resp.Code, resp.Body.String())
	}
	created := unmarshalMap(t, resp.Body.Bytes())
	id, _ := created["ID"].(string)
	if id == "" {
		t.Fatalf("expected campaign id, got %v", created)
	}
	if created["Owner"] != "owner" {
		t.Fatalf("expected owner principal, got %v", created["Owner"])
	}

	badDate := marshal(map[string]any{
		"name":       "bad",
		"start_time": "yesterday",
		"end_time":   end.Format(time.RFC3339),
	})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns", ownerToken, badDate))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 bad start_time, got %d", resp.Code)
	}

	inverted := marshal(map[string]any{
		"name":              "bad",
		"start_time":        end.Format(time.RFC3339),
		"end_time":          start.Format(time.RFC3339),
		"max_registrations": 3,
		"registration_fee":  10,
	})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns", ownerToken, inverted))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 inverted window, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list campaigns, got %d", resp.Code)
	}
	var listed []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal campaign list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 campaign, got %d", len(listed))
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id, aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 get campaign, got %d", resp.Code)
	}
	fetched := unmarshalMap(t, resp.Body.Bytes())
	if fetched["Phase"] != "active" {
		t.Fatalf("expected active phase, got %v", fetched["Phase"])
	}

	before := start.Add(-2 * time.Hour).Format(time.RFC3339)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"?at="+before, aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 phase lookup, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["Phase"] != "not_started" {
		t.Fatalf("expected not_started phase before window")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"?at=bogus", aliceToken, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 bad at parameter, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/missing", aliceToken, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 unknown campaign, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/settings", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 get settings, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["MaxRegistrations"] != float64(3) {
		t.Fatalf("expected capacity 3 in settings")
	}

	register := marshal(map[string]any{"attached_payment": 10})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", aliceToken, register))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 register alice, got %d: %s", resp.Code, resp.Body.String())
	}
	reg := unmarshalMap(t, resp.Body.Bytes())
	if reg["Principal"] != "alice" || reg["PaidFee"] != float64(10) {
		t.Fatalf("unexpected registration payload: %v", reg)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", aliceToken, register))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 duplicate registration, got %d", resp.Code)
	}

	underpaid := marshal(map[string]any{"attached_payment": 3})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", bobToken, underpaid))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 fee mismatch, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/pause", aliceToken, nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 pause by non-owner, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/pause", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 pause, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["Paused"] != true {
		t.Fatalf("expected paused campaign")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", bobToken, register))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 register while paused, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/unpause", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 unpause, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/whitelist/enable", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 enable whitelist, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["WhitelistEnabled"] != true {
		t.Fatalf("expected whitelist enabled")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", bobToken, register))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 register while not whitelisted, got %d", resp.Code)
	}

	entryBody := marshal(map[string]any{"principal": "bob"})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/whitelist/entries", ownerToken, entryBody))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 whitelist bob, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["Principal"] != "bob" {
		t.Fatalf("unexpected whitelist entry payload")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/whitelist/entries/bob", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 whitelist check, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["whitelisted"] != true {
		t.Fatalf("expected bob whitelisted")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", bobToken, register))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 register bob, got %d: %s", resp.Code, resp.Body.String())
	}

	batchAdd := marshal(map[string]any{"principals": []string{"carol", "dave", "bob"}})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/whitelist/batch-add", ownerToken, batchAdd))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 batch add, got %d", resp.Code)
	}
	var added []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &added); err != nil {
		t.Fatalf("unmarshal batch add: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("expected 2 new entries, got %d", len(added))
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/whitelist", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list whitelist, got %d", resp.Code)
	}
	var entries []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal whitelist: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 whitelist entries, got %d", len(entries))
	}

	batchRemove := marshal(map[string]any{"principals": []string{"dave", "zoe"}})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/whitelist/batch-remove", ownerToken, batchRemove))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 batch remove, got %d", resp.Code)
	}
	var removed []string
	if err := json.Unmarshal(resp.Body.Bytes(), &removed); err != nil {
		t.Fatalf("unmarshal batch remove: %v", err)
	}
	if len(removed) != 1 || removed[0] != "dave" {
		t.Fatalf("expected only dave removed, got %v", removed)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodDelete, "/campaigns/"+id+"/whitelist/entries/carol", ownerToken, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 remove carol, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodDelete, "/campaigns/"+id+"/whitelist/entries/carol", ownerToken, nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 remove absent entry, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/whitelist/entries/carol", aliceToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 whitelist check, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["whitelisted"] != false {
		t.Fatalf("expected carol not whitelisted after removal")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/whitelist/disable", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 disable whitelist, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", carolToken, register))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 register carol, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/registrations", daveToken, register))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 capacity reached, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/registrations", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list registrations, got %d", resp.Code)
	}
	var regs []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &regs); err != nil {
		t.Fatalf("unmarshal registrations: %v", err)
	}
	if len(regs) != 3 {
		t.Fatalf("expected 3 registrations, got %d", len(regs))
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/registrations/alice", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 check alice, got %d", resp.Code)
	}
	check := unmarshalMap(t, resp.Body.Bytes())
	if check["Registered"] != true || check["PaidFee"] != float64(10) {
		t.Fatalf("unexpected alice registration: %v", check)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/registrations/zoe", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 check unknown principal, got %d", resp.Code)
	}
	check = unmarshalMap(t, resp.Body.Bytes())
	if check["Registered"] != false || check["Principal"] != "zoe" {
		t.Fatalf("expected zero record for zoe, got %v", check)
	}

	settingsBody := marshal(map[string]any{
		"start_time":        start.Format(time.RFC3339),
		"end_time":          end.Format(time.RFC3339),
		"max_registrations": 10,
		"registration_fee":  10,
	})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPut, "/campaigns/"+id+"/settings", aliceToken, settingsBody))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 settings by non-owner, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPut, "/campaigns/"+id+"/settings", ownerToken, settingsBody))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 update settings, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/settings", ownerToken, nil))
	if unmarshalMap(t, resp.Body.Bytes())["MaxRegistrations"] != float64(10) {
		t.Fatalf("expected raised capacity in settings")
	}

	withdrawBody := marshal(map[string]any{"amount": 5})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/withdrawals", aliceToken, withdrawBody))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 withdraw by non-owner, got %d", resp.Code)
	}

	withdrawBody = marshal(map[string]any{"amount": 25})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/withdrawals", ownerToken, withdrawBody))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 withdraw, got %d: %s", resp.Code, resp.Body.String())
	}
	wd := unmarshalMap(t, resp.Body.Bytes())
	if wd["Status"] != "completed" || wd["Amount"] != float64(25) {
		t.Fatalf("unexpected withdrawal payload: %v", wd)
	}

	withdrawBody = marshal(map[string]any{"amount": 10})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/withdrawals", ownerToken, withdrawBody))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 withdraw beyond balance, got %d", resp.Code)
	}

	withdrawBody = marshal(map[string]any{"amount": 0})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/withdrawals", ownerToken, withdrawBody))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 zero withdrawal, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/withdrawals", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list withdrawals, got %d", resp.Code)
	}
	var wds []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &wds); err != nil {
		t.Fatalf("unmarshal withdrawals: %v", err)
	}
	if len(wds) != 1 {
		t.Fatalf("expected 1 withdrawal, got %d", len(wds))
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id, ownerToken, nil))
	if unmarshalMap(t, resp.Body.Bytes())["Balance"] != float64(5) {
		t.Fatalf("expected balance 5 after withdrawal")
	}

	transferBody := marshal(map[string]any{"candidate": "bob"})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/ownership/transfer", aliceToken, transferBody))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 transfer by non-owner, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/ownership/transfer", ownerToken, transferBody))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 transfer, got %d", resp.Code)
	}
	if unmarshalMap(t, resp.Body.Bytes())["PendingOwner"] != "bob" {
		t.Fatalf("expected pending owner bob")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/ownership/accept", carolToken, nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 accept by non-candidate, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/ownership/accept", bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 accept, got %d", resp.Code)
	}
	accepted := unmarshalMap(t, resp.Body.Bytes())
	if accepted["Owner"] != "bob" || accepted["PendingOwner"] != "" {
		t.Fatalf("unexpected ownership state: %v", accepted)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/pause", ownerToken, nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 pause by former owner, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/pause", bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 pause by new owner, got %d", resp.Code)
	}
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/unpause", bobToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 unpause by new owner, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/events", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list events, got %d", resp.Code)
	}
	var trail []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &trail); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(trail) < 10 {
		t.Fatalf("expected a full event trail, got %d entries", len(trail))
	}
	if trail[0]["name"] != campaign.EventCampaignCreated || trail[0]["sequence"] != float64(1) {
		t.Fatalf("unexpected first event: %v", trail[0])
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/events?limit=2", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 limited events, got %d", resp.Code)
	}
	var tail []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &tail); err != nil {
		t.Fatalf("unmarshal limited events: %v", err)
	}
	if len(tail) != 2 || tail[0]["name"] != campaign.EventPaused || tail[1]["name"] != campaign.EventUnpaused {
		t.Fatalf("unexpected event tail: %v", tail)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/"+id+"/events?limit=x", ownerToken, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 bad limit, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 metrics, got %d", resp.Code)
	}
	if resp.Body.Len() == 0 {
		t.Fatalf("expected metrics output to be non-empty")
	}

	req = httptest.NewRequest(http.MethodGet, "/audit", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 audit, got %d", resp.Code)
	}
	var auditTrail []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &auditTrail); err != nil {
		t.Fatalf("unmarshal audit trail: %v", err)
	}
	if len(auditTrail) == 0 {
		t.Fatalf("expected audit entries")
	}
	foundCreate := false
	for _, entry := range auditTrail {
		if entry["path"] == "/campaigns" && entry["method"] == http.MethodPost && entry["principal"] == "owner" {
			foundCreate = true
		}
	}
	if !foundCreate {
		t.Fatalf("expected campaign creation in audit trail")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.Code)
	}
}

func TestHandlerAuthRequired(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/campaigns", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns", "not-a-jwt", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", resp.Code)
	}
}

func TestHandlerTokenIssuance(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))

	body := marshal(map[string]any{"admin_key": "wrong", "principal": "alice"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 wrong admin key, got %d", resp.Code)
	}

	body = marshal(map[string]any{"admin_key": testAdminKey})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 missing principal, got %d", resp.Code)
	}

	body = marshal(map[string]any{"admin_key": testAdminKey, "principal": "alice"})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 token issuance, got %d", resp.Code)
	}
	payload := unmarshalMap(t, resp.Body.Bytes())
	token, _ := payload["token"].(string)
	if token == "" || payload["expires_in"] != float64(3600) {
		t.Fatalf("unexpected token payload: %v", payload)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns", token, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with issued token, got %d", resp.Code)
	}
}

func TestHandlerAdminKeyRequired(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))

	for _, path := range []string{"/metrics", "/audit"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without key, got %d", path, resp.Code)
		}

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Admin-Key", "wrong")
		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s with wrong key, got %d", path, resp.Code)
		}
	}
}

func TestHandlerRejectsUnknownFields(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))
	token := issueToken(t, handler, "owner")

	body := marshal(map[string]any{"nmae": "typo"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns", token, body))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 unknown field, got %d", resp.Code)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	opts := testOptions(t)
	opts.RateLimit = 1
	opts.RateBurst = 2
	handler := newTestHandler(t, opts)
	token := issueToken(t, handler, "alice")

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns", token, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 within burst, got %d", resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns", token, nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 beyond burst, got %d", resp.Code)
	}
}

func TestHandlerCORS(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))

	req := httptest.NewRequest(http.MethodOptions, "/campaigns", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 preflight, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("expected allowed origin echoed, got %q", resp.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodOptions, "/campaigns", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 unknown origin, got %d", resp.Code)
	}
}

func TestHandlerEventStream(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))
	ownerToken := issueToken(t, handler, "owner")

	start := time.Now().UTC().Add(-time.Hour)
	body := marshal(map[string]any{
		"name":              "stream-sale",
		"start_time":        start.Format(time.RFC3339),
		"end_time":          start.Add(24 * time.Hour).Format(time.RFC3339),
		"max_registrations": 10,
		"registration_fee":  0,
	})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns", ownerToken, body))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 create campaign, got %d: %s", resp.Code, resp.Body.String())
	}
	id := unmarshalMap(t, resp.Body.Bytes())["ID"].(string)

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/campaigns/" + id + "/events/stream?token=" + ownerToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close()

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/campaigns/"+id+"/pause", ownerToken, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 pause, got %d", resp.Code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt event.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read stream event: %v", err)
	}
	if evt.Name != campaign.EventPaused {
		t.Fatalf("expected Paused event, got %s", evt.Name)
	}
	if evt.CampaignID != id {
		t.Fatalf("expected event for campaign %s, got %s", id, evt.CampaignID)
	}
}

func TestHandlerStreamUnknownCampaign(t *testing.T) {
	handler := newTestHandler(t, testOptions(t))
	token := issueToken(t, handler, "alice")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/campaigns/missing/events/stream", token, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 unknown campaign, got %d", resp.Code)
	}
}

func newTestHandler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	application, err := app.New(app.Stores{}, nil, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })
	return NewHandler(application, opts)
}

func testOptions(t *testing.T) Options {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin key: %v", err)
	}
	return Options{
		JWTSecret:    []byte("handler-test-secret"),
		TokenTTL:     time.Hour,
		AdminKeyHash: string(hash),
		RateLimit:    1000,
		RateBurst:    1000,
	}
}

func issueToken(t *testing.T, handler http.Handler, principal string) string {
	t.Helper()
	body := marshal(map[string]any{"admin_key": testAdminKey, "principal": principal})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 issuing token for %s, got %d: %s", principal, resp.Code, resp.Body.String())
	}
	token, _ := unmarshalMap(t, resp.Body.Bytes())["token"].(string)
	if token == "" {
		t.Fatalf("expected token for %s", principal)
	}
	return token
}

func authedRequest(method, url, token string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marshal(v any) []byte {
	buf, _ := json.Marshal(v)
	return buf
}

func unmarshalMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return m
}
