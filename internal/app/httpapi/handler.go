package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	app "github.com/R3E-Network/presale_layer/internal/app"
	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/metrics"
	campaignsvc "github.com/R3E-Network/presale_layer/internal/app/services/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/storage"
	"github.com/R3E-Network/presale_layer/pkg/logger"
)

// Options configures the HTTP surface wrapped around the application
// services.
type Options struct {
	JWTSecret      []byte
	TokenTTL       time.Duration
	AdminKeyHash   string
	RateLimit      rate.Limit
	RateBurst      int
	AuditSize      int
	AuditLogPath   string
	AllowedOrigins []string
	Log            *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	auth    *authenticator
	audit   *auditLog
	origins []string
	log     *logger.Logger
}

// NewHandler returns the REST and websocket API with its middleware chain:
// CORS, metrics, rate limiting, authentication, audit.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	var sink auditSink
	if opts.AuditLogPath != "" {
		fileSink, err := newFileAuditSink(opts.AuditLogPath)
		if err != nil {
			log.WithError(err).Warn("open audit log sink; auditing to memory only")
		} else {
			sink = fileSink
		}
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	h := &handler{
		app:     application,
		auth:    newAuthenticator(opts.JWTSecret, opts.TokenTTL, opts.AdminKeyHash),
		audit:   newAuditLog(opts.AuditSize, sink),
		origins: origins,
		log:     log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/auth/token", h.issueToken).Methods(http.MethodPost)
	r.Handle("/metrics", h.requireAdminKey(metrics.Handler())).Methods(http.MethodGet)
	r.Handle("/audit", h.requireAdminKey(http.HandlerFunc(h.auditEntries))).Methods(http.MethodGet)

	r.HandleFunc("/campaigns", h.createCampaign).Methods(http.MethodPost)
	r.HandleFunc("/campaigns", h.listCampaigns).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}", h.getCampaign).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/settings", h.getSettings).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/settings", h.putSettings).Methods(http.MethodPut)
	r.HandleFunc("/campaigns/{id}/registrations", h.register).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/registrations", h.listRegistrations).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/registrations/{principal}", h.checkRegistration).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/pause", h.pause).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/unpause", h.unpause).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/whitelist", h.listWhitelist).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/whitelist/enable", h.enableWhitelist).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/whitelist/disable", h.disableWhitelist).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/whitelist/entries", h.addWhitelistEntry).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/whitelist/entries/{principal}", h.getWhitelistEntry).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/whitelist/entries/{principal}", h.removeWhitelistEntry).Methods(http.MethodDelete)
	r.HandleFunc("/campaigns/{id}/whitelist/batch-add", h.batchAddWhitelist).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/whitelist/batch-remove", h.batchRemoveWhitelist).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/withdrawals", h.withdraw).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/withdrawals", h.listWithdrawals).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/ownership/transfer", h.transferOwnership).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/ownership/accept", h.acceptOwnership).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/events", h.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/campaigns/{id}/events/stream", h.streamEvents).Methods(http.MethodGet)

	limiter := newRateLimiter(opts.RateLimit, opts.RateBurst, h.auth, log)

	var chain http.Handler = r
	chain = h.auditMiddleware(chain)
	chain = h.authMiddleware(chain)
	chain = limiter.middleware(chain)
	chain = metrics.InstrumentHandler(chain)
	chain = h.corsMiddleware(chain)
	return chain
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AdminKey  string `json:"admin_key"`
		Principal string `json:"principal"`
		Admin     bool   `json:"admin"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.auth.checkAdminKey(payload.AdminKey); err != nil {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("admin key rejected"))
		return
	}
	principal := strings.TrimSpace(payload.Principal)
	if principal == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("principal is required"))
		return
	}

	token, err := h.auth.issue(principal, payload.Admin, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(h.auth.ttl / time.Second),
	})
}

func (h *handler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.auth.checkAdminKey(r.Header.Get("X-Admin-Key")); err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("admin key rejected"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func (h *handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name             string `json:"name"`
		StartTime        string `json:"start_time"`
		EndTime          string `json:"end_time"`
		MaxRegistrations int64  `json:"max_registrations"`
		RegistrationFee  int64  `json:"registration_fee"`
		WhitelistEnabled bool   `json:"whitelist_enabled"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start, err := parseTime(payload.StartTime, "start_time")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseTime(payload.EndTime, "end_time")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.app.Campaigns.CreateCampaign(r.Context(), principalFrom(r.Context()), campaignsvc.CreateParams{
		Name:             payload.Name,
		StartTime:        start,
		EndTime:          end,
		MaxRegistrations: payload.MaxRegistrations,
		RegistrationFee:  payload.RegistrationFee,
		WhitelistEnabled: payload.WhitelistEnabled,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.app.Campaigns.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (h *handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	at := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("at")); raw != "" {
		at, err = parseTime(raw, "at")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, struct {
		campaign.Campaign
		Phase campaign.Phase
	}{c, c.Settings.PhaseAt(at)})
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.app.Campaigns.GetSettings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		StartTime        string `json:"start_time"`
		EndTime          string `json:"end_time"`
		MaxRegistrations int64  `json:"max_registrations"`
		RegistrationFee  int64  `json:"registration_fee"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start, err := parseTime(payload.StartTime, "start_time")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseTime(payload.EndTime, "end_time")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.app.Campaigns.SetSettings(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()), campaign.Settings{
		StartTime:        start,
		EndTime:          end,
		MaxRegistrations: payload.MaxRegistrations,
		RegistrationFee:  payload.RegistrationFee,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AttachedPayment int64  `json:"attached_payment"`
		Timestamp       string `json:"timestamp"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	at, err := parseOptionalTime(payload.Timestamp, "timestamp")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reg, err := h.app.Campaigns.Register(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()), payload.AttachedPayment, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *handler) listRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.app.Campaigns.Registrations(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *handler) checkRegistration(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	reg, err := h.app.Campaigns.CheckRegistration(r.Context(), vars["id"], vars["principal"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *handler) pause(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.Pause(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) unpause(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.Unpause(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) enableWhitelist(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.EnableWhitelist(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) disableWhitelist(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.DisableWhitelist(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) listWhitelist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Campaigns.ListWhitelist(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) addWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Principal string `json:"principal"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entry, err := h.app.Campaigns.AddToWhitelist(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()), payload.Principal)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *handler) getWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	listed, err := h.app.Campaigns.IsWhitelisted(r.Context(), vars["id"], vars["principal"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal":   vars["principal"],
		"whitelisted": listed,
	})
}

func (h *handler) removeWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.app.Campaigns.RemoveFromWhitelist(r.Context(), vars["id"], principalFrom(r.Context()), vars["principal"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) batchAddWhitelist(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Principals []string `json:"principals"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	added, err := h.app.Campaigns.AddBatchToWhitelist(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()), payload.Principals)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, added)
}

func (h *handler) batchRemoveWhitelist(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Principals []string `json:"principals"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	removed, err := h.app.Campaigns.RemoveBatchFromWhitelist(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()), payload.Principals)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount    int64  `json:"amount"`
		Timestamp string `json:"timestamp"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	at, err := parseOptionalTime(payload.Timestamp, "timestamp")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wd, err := h.app.Campaigns.Withdraw(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()), payload.Amount, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

func (h *handler) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	wds, err := h.app.Campaigns.ListWithdrawals(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wds)
}

func (h *handler) transferOwnership(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Candidate string `json:"candidate"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.app.Campaigns.TransferOwnership(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()), payload.Candidate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) acceptOwnership(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.AcceptOwnership(r.Context(), mux.Vars(r)["id"], principalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	trail, err := h.app.Campaigns.Events(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

func parseTime(value, field string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", field)
	}
	return parsed, nil
}

// parseOptionalTime defaults to the current time when the field is absent.
func parseOptionalTime(value, field string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Now().UTC(), nil
	}
	return parseTime(value, field)
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return limit, nil
}

func statusFor(err error) int {
	switch {
	case campaign.IsNotAuthorized(err):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case campaign.IsInvalidInput(err):
		return http.StatusBadRequest
	case campaign.IsPrecondition(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
