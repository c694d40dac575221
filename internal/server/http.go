package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"RevLedger/internal/projection"
	"RevLedger/internal/query"
)

// HTTPServer serves the JSON API: read endpoints backed by projections and
// authority-gated admin endpoints for manual event injection and maintenance.
type HTTPServer struct {
	httpServer *http.Server
	httpAddr   string
	deps       *ServerDeps
}

func NewHTTPServer(httpAddr string, deps *ServerDeps) *HTTPServer {
	s := &HTTPServer{httpAddr: httpAddr, deps: deps}

	mux := http.NewServeMux()

	// Read API
	mux.HandleFunc("GET /v1/classes", s.instrument("list_classes", s.handleListClasses))
	mux.HandleFunc("GET /v1/classes/{kind}", s.instrument("get_class", s.handleGetClass))
	mux.HandleFunc("GET /v1/classes/{kind}/shares", s.instrument("list_shares", s.handleListShares))
	mux.HandleFunc("GET /v1/shares/{share_id}", s.instrument("get_share", s.handleGetShare))
	mux.HandleFunc("GET /v1/shares/{share_id}/claims", s.instrument("claim_history", s.handleClaimHistory))
	mux.HandleFunc("GET /v1/shares/{share_id}/journal", s.instrument("journal_history", s.handleJournalHistory))

	// Admin API — requires the configured admin token
	mux.HandleFunc("GET /v1/admin/status", s.requireAdmin(s.handleStatus))
	mux.HandleFunc("GET /v1/admin/integrity", s.requireAdmin(s.handleVerifyIntegrity))
	mux.HandleFunc("POST /v1/admin/classes", s.requireAdmin(s.handleInjectClass))
	mux.HandleFunc("POST /v1/admin/mint", s.requireAdmin(s.handleInjectMint))
	mux.HandleFunc("POST /v1/admin/burn", s.requireAdmin(s.handleInjectBurn))
	mux.HandleFunc("POST /v1/admin/deposits", s.requireAdmin(s.handleInjectDeposit))
	mux.HandleFunc("POST /v1/admin/claims", s.requireAdmin(s.handleInjectClaim))
	mux.HandleFunc("POST /v1/admin/projections/rebuild", s.requireAdmin(s.handleRebuildProjections))

	// Probes
	if deps.HealthChecker != nil {
		mux.HandleFunc("GET /healthz", deps.HealthChecker.LivenessHandler)
		mux.HandleFunc("GET /readyz", deps.HealthChecker.ReadinessHandler)
	} else {
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"ok"}`)
		})
	}

	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for tests and custom mounting.
func (s *HTTPServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// --- Read handlers ---

func (s *HTTPServer) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.deps.QueryService.ListClasses(r.Context())
	if err != nil {
		s.writeError(w, "list_classes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"classes": classes})
}

func (s *HTTPServer) handleGetClass(w http.ResponseWriter, r *http.Request) {
	class, err := s.deps.QueryService.GetClass(r.Context(), r.PathValue("kind"))
	if err != nil {
		s.writeError(w, "get_class", err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (s *HTTPServer) handleListShares(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 1000)
	shares, err := s.deps.QueryService.ListShares(r.Context(), r.PathValue("kind"), limit)
	if err != nil {
		s.writeError(w, "list_shares", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"shares": shares})
}

func (s *HTTPServer) handleGetShare(w http.ResponseWriter, r *http.Request) {
	shareID, err := uuid.Parse(r.PathValue("share_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid share_id"})
		return
	}

	share, err := s.deps.QueryService.GetShare(r.Context(), shareID)
	if err != nil {
		s.writeError(w, "get_share", err)
		return
	}
	writeJSON(w, http.StatusOK, share)
}

func (s *HTTPServer) handleClaimHistory(w http.ResponseWriter, r *http.Request) {
	shareID, err := uuid.Parse(r.PathValue("share_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid share_id"})
		return
	}

	var rewardKind *string
	if rk := r.URL.Query().Get("reward_kind"); rk != "" {
		rewardKind = &rk
	}

	limit := parseLimit(r, 50, 100)
	afterSeq := parseAfterSequence(r)

	claims, err := s.deps.QueryService.GetClaimHistory(r.Context(), shareID, rewardKind, limit, afterSeq)
	if err != nil {
		s.writeError(w, "claim_history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"claims": claims})
}

func (s *HTTPServer) handleJournalHistory(w http.ResponseWriter, r *http.Request) {
	shareID, err := uuid.Parse(r.PathValue("share_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid share_id"})
		return
	}

	limit := parseLimit(r, 100, 500)
	afterSeq := parseAfterSequence(r)

	entries, err := s.deps.QueryService.GetJournalHistory(r.Context(), shareID, limit, afterSeq)
	if err != nil {
		s.writeError(w, "journal_history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journals": entries})
}

// --- Admin handlers ---

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	lastSeq, err := s.deps.SnapshotMgr.GetLatestSequence(r.Context())
	if err != nil {
		s.writeError(w, "admin_status", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_persisted_sequence": lastSeq,
		"uptime_seconds":          int64(time.Since(s.deps.StartTime).Seconds()),
		"ready":                   s.deps.HealthChecker != nil && s.deps.HealthChecker.IsReady(),
	})
}

func (s *HTTPServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		s.writeError(w, "verify_integrity", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type injectClassRequest struct {
	Kind           string `json:"kind"`
	TotalSupplyCap uint64 `json:"total_supply_cap"`
	Burnable       bool   `json:"burnable"`
	Sequence       int64  `json:"sequence"`
}

func (s *HTTPServer) handleInjectClass(w http.ResponseWriter, r *http.Request) {
	var req injectClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return
	}

	err := s.deps.IngestService.InjectClassCreate(r.Context(), req.Kind, req.TotalSupplyCap, req.Burnable, req.Sequence)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type injectMintRequest struct {
	ShareID  string `json:"share_id"`
	Kind     string `json:"kind"`
	Amount   uint64 `json:"amount"`
	Sequence int64  `json:"sequence"`
}

func (s *HTTPServer) handleInjectMint(w http.ResponseWriter, r *http.Request) {
	var req injectMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return
	}

	// The share ID names the share being created; generate one when the
	// operator does not care which.
	shareID := uuid.New()
	if req.ShareID != "" {
		var err error
		shareID, err = uuid.Parse(req.ShareID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid share_id"})
			return
		}
	}

	err := s.deps.IngestService.InjectMint(r.Context(), shareID, req.Kind, req.Amount, req.Sequence)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
		"share_id": shareID.String(),
	})
}

type injectBurnRequest struct {
	ShareID  string `json:"share_id"`
	Kind     string `json:"kind"`
	Sequence int64  `json:"sequence"`
}

func (s *HTTPServer) handleInjectBurn(w http.ResponseWriter, r *http.Request) {
	var req injectBurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return
	}

	shareID, err := uuid.Parse(req.ShareID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid share_id"})
		return
	}

	if err := s.deps.IngestService.InjectBurn(r.Context(), shareID, req.Kind, req.Sequence); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type injectDepositRequest struct {
	Kind       string `json:"kind"`
	RewardKind string `json:"reward_kind"`
	Amount     uint64 `json:"amount"`
	Sequence   int64  `json:"sequence"`
}

func (s *HTTPServer) handleInjectDeposit(w http.ResponseWriter, r *http.Request) {
	var req injectDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return
	}

	err := s.deps.IngestService.InjectRevenueDeposit(r.Context(), req.Kind, req.RewardKind, req.Amount, req.Sequence)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type injectClaimRequest struct {
	ShareID    string `json:"share_id"`
	Kind       string `json:"kind"`
	RewardKind string `json:"reward_kind"`
	Sequence   int64  `json:"sequence"`
}

func (s *HTTPServer) handleInjectClaim(w http.ResponseWriter, r *http.Request) {
	var req injectClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return
	}

	shareID, err := uuid.Parse(req.ShareID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid share_id"})
		return
	}

	err = s.deps.IngestService.InjectClaim(r.Context(), shareID, req.Kind, req.RewardKind, req.Sequence)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *HTTPServer) handleRebuildProjections(w http.ResponseWriter, r *http.Request) {
	if err := projection.RebuildProjections(r.Context(), s.deps.DB); err != nil {
		s.writeError(w, "rebuild_projections", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rebuilt": true})
}

// --- Middleware & helpers ---

// instrument wraps read handlers with request metrics and a freshness
// observation (projection watermark age at query time).
func (s *HTTPServer) instrument(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(sw, r)

		if m := s.deps.Metrics; m != nil {
			m.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			m.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
			if lag, err := s.deps.QueryService.Freshness(r.Context()); err == nil {
				m.QueryFreshnessLag.WithLabelValues(endpoint).Observe(lag.Seconds())
			}
		}
	}
}

// requireAdmin rejects requests that do not carry the configured admin
// bearer token. With no token configured the admin surface is disabled.
func (s *HTTPServer) requireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.AdminToken == "" {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin API disabled"})
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.deps.AdminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid admin token"})
			return
		}

		handler(w, r)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *HTTPServer) writeError(w http.ResponseWriter, endpoint string, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, query.ErrNotFound) {
		code = http.StatusNotFound
	}

	if m := s.deps.Metrics; m != nil {
		m.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	}
	if code == http.StatusInternalServerError {
		log.Printf("ERROR: %s: %v", endpoint, err)
	}

	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("page_size")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}

func parseAfterSequence(r *http.Request) *int64 {
	raw := r.URL.Query().Get("from_sequence")
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
