//go:build integration && postgres

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/presale_layer/internal/app"
	"github.com/R3E-Network/presale_layer/internal/app/storage/postgres"
)

// Integration test against Postgres to ensure migrations and the HTTP flows
// work with persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := postgres.New(db)
	application, err := app.New(app.Stores{
		Campaigns:   store,
		AccessLists: store,
		Events:      store,
		Withdrawals: store,
	}, nil, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(ctx) })

	server := httptest.NewServer(NewHandler(application, testOptions(t)))
	defer server.Close()
	client := server.Client()

	if resp, err := client.Get(server.URL + "/healthz"); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz failed: %v", err)
	}

	status, body := doRequest(t, client, http.MethodPost, server.URL+"/auth/token", "", marshal(map[string]any{
		"admin_key": testAdminKey,
		"principal": "pg-owner",
	}))
	if status != http.StatusOK {
		t.Fatalf("issue token status: %d body %s", status, body)
	}
	var tokenPayload map[string]any
	if err := json.Unmarshal(body, &tokenPayload); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	token := tokenPayload["token"].(string)

	start := time.Now().UTC().Add(-time.Hour)
	status, body = doRequest(t, client, http.MethodPost, server.URL+"/campaigns", token, marshal(map[string]any{
		"name":              "pg-sale",
		"start_time":        start.Format(time.RFC3339),
		"end_time":          start.Add(24 * time.Hour).Format(time.RFC3339),
		"max_registrations": 100,
		"registration_fee":  2,
	}))
	if status != http.StatusCreated {
		t.Fatalf("create campaign status: %d body %s", status, body)
	}
	var created map[string]any
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal campaign: %v", err)
	}
	id := created["ID"].(string)

	status, body = doRequest(t, client, http.MethodPost, server.URL+"/campaigns/"+id+"/registrations", token, marshal(map[string]any{
		"attached_payment": 2,
	}))
	if status != http.StatusCreated {
		t.Fatalf("register status: %d body %s", status, body)
	}

	status, body = doRequest(t, client, http.MethodGet, server.URL+"/campaigns/"+id+"/events", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list events status: %d", status)
	}
	var trail []map[string]any
	if err := json.Unmarshal(body, &trail); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(trail) < 2 || trail[0]["name"] != "CampaignCreated" {
		t.Fatalf("expected persisted event trail, got %v", trail)
	}

	// A second store over the same database sees the persisted campaign.
	if _, err := postgres.New(db).GetCampaign(ctx, id); err != nil {
		t.Fatalf("campaign not persisted: %v", err)
	}
}

func doRequest(t *testing.T, client *http.Client, method, url, token string, body []byte) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, payload
}
