package treasury

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPTransferorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer payout-key" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var body struct {
			CampaignID string `json:"campaign_id"`
			To         string `json:"to"`
			Amount     int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.CampaignID != "camp-1" || body.To != "owner-addr" || body.Amount != 250 {
			t.Errorf("unexpected request body: %+v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tx_id":"0xfeed"}`))
	}))
	defer server.Close()

	transferor, err := NewHTTPTransferor(server.Client(), server.URL, "payout-key", nil)
	if err != nil {
		t.Fatalf("new transferor: %v", err)
	}

	txID, err := transferor.Transfer(context.Background(), "camp-1", "owner-addr", 250)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if txID != "0xfeed" {
		t.Fatalf("unexpected tx id %q", txID)
	}
}

func TestHTTPTransferorRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"destination frozen"}`))
	}))
	defer server.Close()

	transferor, err := NewHTTPTransferor(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new transferor: %v", err)
	}

	_, err = transferor.Transfer(context.Background(), "camp-1", "owner-addr", 10)
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if !strings.Contains(err.Error(), "destination frozen") {
		t.Fatalf("error should carry the endpoint reason, got %v", err)
	}
}

func TestHTTPTransferorMissingTxID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transferor, err := NewHTTPTransferor(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new transferor: %v", err)
	}

	if _, err := transferor.Transfer(context.Background(), "camp-1", "owner-addr", 10); err == nil {
		t.Fatal("expected error for missing tx_id")
	}
}

func TestNewHTTPTransferorRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPTransferor(nil, "  ", "", nil); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestLocalTransferorAlwaysSettles(t *testing.T) {
	transferor := NewLocalTransferor()
	txID, err := transferor.Transfer(context.Background(), "camp-1", "owner-addr", 5)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if txID == "" {
		t.Fatal("expected a generated tx id")
	}
}
