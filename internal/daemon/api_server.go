package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"assetflow/internal/api"
	"assetflow/internal/config"
	"assetflow/internal/logging"
	"assetflow/internal/services"
	"assetflow/internal/workflow"
)

const (
	headerActor     = "X-Actor-ID"
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.API.Bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", srv.handleHealth).Methods(http.MethodGet)
	if d.comps.Metrics != nil {
		r.Handle("/metrics", d.comps.Metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(authMiddleware(cfg.API.Token))
	v1.HandleFunc("/uploads", srv.handleInitiate).Methods(http.MethodPost)
	v1.HandleFunc("/uploads/{id}", srv.handleDescribeUpload).Methods(http.MethodGet)
	v1.HandleFunc("/uploads/{id}/part-urls", srv.handlePartURLs).Methods(http.MethodPost)
	v1.HandleFunc("/uploads/{id}/parts", srv.handleReportPart).Methods(http.MethodPost)
	v1.HandleFunc("/uploads/{id}/complete", srv.handleComplete).Methods(http.MethodPost)
	v1.HandleFunc("/uploads/{id}/abort", srv.handleAbort).Methods(http.MethodPost)
	v1.HandleFunc("/versions/{id}", srv.handleGetVersion).Methods(http.MethodGet)
	v1.HandleFunc("/versions/{id}/request-processing", srv.handleRequestProcessing).Methods(http.MethodPost)
	v1.HandleFunc("/versions/{id}/notifications", srv.handleNotifications).Methods(http.MethodGet)
	v1.HandleFunc("/versions/{id}/audit", srv.handleAudit).Methods(http.MethodGet)
	v1.HandleFunc("/versions/{id}/{action:assign|reassign|send-for-review|approve|reject|publish}", srv.handleTransition).Methods(http.MethodPost)
	v1.HandleFunc("/groups/{key}/lineage", srv.handleLineage).Methods(http.MethodGet)
	v1.HandleFunc("/groups/{key}/latest", srv.handleLatest).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed", Code: "VALIDATION"})
	})

	var h http.Handler = requestContext(r)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{srv.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	if len(cfg.API.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.API.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", headerActor, headerRequestID}),
			handlers.ExposedHeaders([]string{headerRequestID}),
		)(h)
	}
	srv.handler = h

	srv.server = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// requestContext stamps the request id and caller identity into the context.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(headerRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(headerRequestID, rid)
		ctx := services.WithRequestID(r.Context(), rid)
		ctx = services.WithActor(ctx, strings.TrimSpace(r.Header.Get(headerActor)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error("panic in http handler", logging.String("panic", fmt.Sprint(args...)))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, healthy := s.daemon.Health(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *apiServer) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var body api.InitiateRequest
	if !s.decode(w, r, &body) {
		return
	}
	req, err := api.ToInitiateRequest(body, actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handle, err := s.daemon.comps.Uploads.Initiate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromHandle(handle))
}

func (s *apiServer) handleDescribeUpload(w http.ResponseWriter, r *http.Request) {
	view, err := s.daemon.comps.Uploads.Describe(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSessionView(view))
}

func (s *apiServer) handlePartURLs(w http.ResponseWriter, r *http.Request) {
	var body api.PartURLsRequest
	if !s.decode(w, r, &body) {
		return
	}
	dests, err := s.daemon.comps.Uploads.IssuePartDestinations(r.Context(), mux.Vars(r)["id"], body.PartNumbers)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PartURLsResponse{Parts: api.FromDestinations(dests)})
}

func (s *apiServer) handleReportPart(w http.ResponseWriter, r *http.Request) {
	var body api.ReportPartRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.daemon.comps.Uploads.ReportPart(r.Context(), mux.Vars(r)["id"], body.PartNumber, body.IntegrityToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AcceptedResponse{Accepted: true})
}

func (s *apiServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	version, err := s.daemon.comps.Uploads.Complete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVersion(version))
}

func (s *apiServer) handleAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.comps.Uploads.Abort(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AbortedResponse{Aborted: true})
}

func (s *apiServer) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.daemon.comps.Graph.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVersion(version))
}

func (s *apiServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action, err := workflow.ParseAction(vars["action"])
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "transition", err.Error(), nil))
		return
	}
	var body api.TransitionRequest
	if !s.decode(w, r, &body) {
		return
	}
	req, err := api.ToWorkflowRequest(vars["id"], actor(r), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	version, err := s.daemon.comps.Workflow.Apply(r.Context(), action, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVersion(version))
}

func (s *apiServer) handleRequestProcessing(w http.ResponseWriter, r *http.Request) {
	version, err := s.daemon.comps.Processing.RequestProcessing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProcessing(version))
}

func (s *apiServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon.comps.Graph.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.daemon.comps.Notifications.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotificationListResponse{Notifications: api.FromNotifications(records)})
}

func (s *apiServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.daemon.comps.Graph.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.daemon.comps.Store.ListAuditEvents(r.Context(), id)
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrStorage, "api", "audit", "list audit events", err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuditListResponse{Events: api.FromAuditEvents(events)})
}

func (s *apiServer) handleLineage(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	lineage, err := s.daemon.comps.Graph.Lineage(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.VersionListResponse{AssetGroupKey: key, Versions: api.FromVersions(lineage)}
	if len(lineage) > 0 {
		resp.AssetGroupKey = lineage[0].GroupKey
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	version, err := s.daemon.comps.Graph.Latest(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVersion(version))
}

func actor(r *http.Request) string {
	a, _ := services.ActorFromContext(r.Context())
	return a
}

// decode reads an optional JSON body. An empty body leaves dst untouched.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err))
		return false
	}
	return true
}

// statusFor maps taxonomy codes onto HTTP status codes.
func statusFor(code string) int {
	switch code {
	case "VALIDATION", "MISSING_REASON":
		return http.StatusBadRequest
	case "NOT_FOUND", "SESSION_NOT_FOUND":
		return http.StatusNotFound
	case "SESSION_TERMINAL", "DUPLICATE_ORIGINAL", "INVALID_TRANSITION", "STALE_STATE":
		return http.StatusConflict
	case "INVALID_PARENT", "INCOMPLETE_UPLOAD":
		return http.StatusUnprocessableEntity
	case "PROCESSING_REQUEST_FAILED", "NOTIFICATION_DELIVERY_FAILED":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := api.ErrorFrom(err)
	status := statusFor(resp.Code)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "request_failed",
			logging.String("path", r.URL.Path),
			logging.String("code", resp.Code),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage and collaborator connectivity"),
		)
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
	} else {
		logger.Debug("request rejected",
			logging.String("path", r.URL.Path),
			logging.String("code", resp.Code),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, resp)
}
