package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/metrics"
	"rentalhub/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Services bundles everything the HTTP boundary calls into.
type Services struct {
	Users     *service.UserService
	Equipment *service.EquipmentService
	Rentals   *service.RentalService
	Payments  *service.PaymentService
	Reviews   *service.ReviewService
	Messages  *service.MessageService
	Export    *service.ExportService
}

// HealthChecker answers whether storage is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the rental core over REST.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	health   HealthChecker
	validate *validator.Validate
	router   *mux.Router
	server   *http.Server
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, tokens TokenValidator, health HealthChecker, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		health:   health,
		validate: newValidator(),
		router:   mux.NewRouter(),
		log:      logger.With().Str("component", "http").Logger(),
	}
	srv.routes()

	auth := NewHTTPAuth(tokens)
	limiter := newRateLimiter(cfg.RateLimit)
	srv.router.Use(srv.recoverMiddleware, srv.loggingMiddleware, auth.Wrap, limiter.Wrap)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}", s.handleGetUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}/reviews", s.handleUserReviews).Methods(http.MethodGet)

	r.HandleFunc("/equipment", s.handleListEquipment).Methods(http.MethodGet)
	r.HandleFunc("/equipment", requireAuth(s.handleCreateEquipment)).Methods(http.MethodPost)
	r.HandleFunc("/equipment/mine", requireAuth(s.handleMyEquipment)).Methods(http.MethodGet)
	r.HandleFunc("/equipment/{id:[0-9]+}", s.handleGetEquipment).Methods(http.MethodGet)
	r.HandleFunc("/equipment/{id:[0-9]+}", requireAuth(s.handleUpdateEquipment)).Methods(http.MethodPut)
	r.HandleFunc("/equipment/{id:[0-9]+}", requireAuth(s.handleDeleteEquipment)).Methods(http.MethodDelete)
	r.HandleFunc("/equipment/{id:[0-9]+}/availability", s.handleCheckAvailability).Methods(http.MethodGet)
	r.HandleFunc("/equipment/{id:[0-9]+}/availability", requireAuth(s.handleSetAvailability)).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/equipment/{id:[0-9]+}/reviews", s.handleEquipmentReviews).Methods(http.MethodGet)

	r.HandleFunc("/rentals", requireAuth(s.handleCreateRental)).Methods(http.MethodPost)
	r.HandleFunc("/rentals", requireAuth(s.handleListRentals)).Methods(http.MethodGet)
	r.HandleFunc("/rentals/export", requireAuth(s.handleExportRentals)).Methods(http.MethodGet)
	r.HandleFunc("/rentals/{id:[0-9]+}", requireAuth(s.handleGetRental)).Methods(http.MethodGet)
	r.HandleFunc("/rentals/{id:[0-9]+}/accept", requireAuth(s.handleAccept)).Methods(http.MethodPut)
	r.HandleFunc("/rentals/{id:[0-9]+}/reject", requireAuth(s.handleReject)).Methods(http.MethodPut)
	r.HandleFunc("/rentals/{id:[0-9]+}/cancel", requireAuth(s.handleCancel)).Methods(http.MethodPut)
	r.HandleFunc("/rentals/{id:[0-9]+}/confirm-return", requireAuth(s.handleConfirmReturn)).Methods(http.MethodPut)
	r.HandleFunc("/rentals/{id:[0-9]+}/conclude", requireAuth(s.handleConclude)).Methods(http.MethodPut)
	r.HandleFunc("/rentals/{id:[0-9]+}/review-eligibility", requireAuth(s.handleReviewEligibility)).Methods(http.MethodGet)
	r.HandleFunc("/rentals/{id:[0-9]+}/messages", requireAuth(s.handleListMessages)).Methods(http.MethodGet)
	r.HandleFunc("/rentals/{id:[0-9]+}/messages", requireAuth(s.handleSendMessage)).Methods(http.MethodPost)

	r.HandleFunc("/payments/webhook", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/payments", requireAuth(s.handleListPayments)).Methods(http.MethodGet)
	r.HandleFunc("/payments/{id:[0-9]+}", requireAuth(s.handleInitiatePayment)).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id:[0-9]+}", requireAuth(s.handleGetPayment)).Methods(http.MethodGet)

	r.HandleFunc("/reviews", requireAuth(s.handleCreateReview)).Methods(http.MethodPost)
	r.HandleFunc("/reviews/{id:[0-9]+}", requireAuth(s.handleDeleteReview)).Methods(http.MethodDelete)

	r.HandleFunc("/messages/unread-count", requireAuth(s.handleUnreadCount)).Methods(http.MethodGet)
}

// Handler exposes the router for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.PingContext(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.IncHTTP(route, strconv.Itoa(recorder.status))

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("http handler panic")
				writeError(w, http.StatusInternalServerError, internalErrorMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}
