package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/auth/token", "/auth"},
		{"/campaigns", "/campaigns"},
		{"/campaigns/", "/campaigns"},
		{"/campaigns/42", "/campaigns/:id"},
		{"/campaigns/42/settings", "/campaigns/:id/settings"},
		{"/campaigns/42/registrations", "/campaigns/:id/registrations"},
		{"/campaigns/42/registrations/alice", "/campaigns/:id/registrations/:principal"},
		{"/campaigns/42/whitelist/entries", "/campaigns/:id/whitelist/entries"},
		{"/campaigns/42/whitelist/batch-add", "/campaigns/:id/whitelist/batch-add"},
		{"/campaigns/42/ownership/accept", "/campaigns/:id/ownership/accept"},
		{"/campaigns/42/events", "/campaigns/:id/events"},
		{"/campaigns/42/events/stream", "/campaigns/:id/events/stream"},
		{"/campaigns/42/pause", "/campaigns/:id/pause"},
	}
	for _, tc := range cases {
		if got := canonicalPath(tc.raw); got != tc.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestInstrumentHandlerRecordsRequests(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/campaigns/42/pause", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status %d, want %d", rec.Code, http.StatusTeapot)
	}

	body := scrape(t)
	if !strings.Contains(body, `presale_layer_http_requests_total{method="POST",path="/campaigns/:id/pause",status="418"}`) {
		t.Fatalf("request counter not recorded:\n%s", snippet(body, "presale_layer_http_requests_total"))
	}
}

func TestDomainRecorders(t *testing.T) {
	RecordRegistration()
	RecordWithdrawalSettled("completed", 250*time.Millisecond)
	RecordWithdrawalSettled("failed", -time.Second)
	RecordEvent("Registered")
	RecordEvent("")

	body := scrape(t)
	for _, series := range []string{
		"presale_layer_campaign_registrations_total",
		`presale_layer_treasury_withdrawals_total{status="completed"}`,
		`presale_layer_treasury_withdrawals_total{status="failed"}`,
		`presale_layer_events_appended_total{name="Registered"}`,
		`presale_layer_events_appended_total{name="unknown"}`,
	} {
		if !strings.Contains(body, series) {
			t.Fatalf("missing series %s", series)
		}
	}
}

func TestSetCampaignPhasesReplacesGauge(t *testing.T) {
	SetCampaignPhases(map[string]int{"active": 2, "ended": 1})
	body := scrape(t)
	if !strings.Contains(body, `presale_layer_campaigns{phase="active"} 2`) {
		t.Fatalf("active gauge not set:\n%s", snippet(body, "presale_layer_campaigns"))
	}

	// A later sweep without the ended phase drops its series.
	SetCampaignPhases(map[string]int{"active": 3})
	body = scrape(t)
	if !strings.Contains(body, `presale_layer_campaigns{phase="active"} 3`) {
		t.Fatalf("active gauge not replaced:\n%s", snippet(body, "presale_layer_campaigns"))
	}
	if strings.Contains(body, `phase="ended"`) {
		t.Fatalf("stale phase series survived reset")
	}
}

func snippet(body, needle string) string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if strings.Contains(line, needle) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
