// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/garyjeong/household-ledger-server/internal/cache"
	"github.com/garyjeong/household-ledger-server/internal/jobs"
	applog "github.com/garyjeong/household-ledger-server/internal/log"
	"github.com/garyjeong/household-ledger-server/internal/middleware/ratelimit"
	"github.com/garyjeong/household-ledger-server/internal/middleware/security"
	"github.com/garyjeong/household-ledger-server/internal/middleware/trace"
	"github.com/garyjeong/household-ledger-server/internal/services"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// Options configures a Server. Store is required; everything else has
// a usable default.
type Options struct {
	Addr        string
	Store       storage.Repository
	Publisher   services.SyncPublisher
	Parallelism int
	Logger      *applog.Logger
}

type Server struct {
	http.Server

	store        storage.Repository
	users        *services.UserService
	transactions *services.TransactionService
	groups       *services.GroupService
	budgets      *services.BudgetService
	statistics   *services.StatisticsService
	processor    *services.RecurringProcessor
	jobs         *jobs.Runner

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	// dashboardCache memoizes the per-user dashboard aggregate, the
	// most expensive read in the API.
	dashboardCache *cache.LRUCache[services.Dashboard]
	cacheManager   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires services, routes and middleware into a
// ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}

	s := &Server{
		store:        opts.Store,
		users:        services.NewUserService(opts.Store),
		transactions: services.NewTransactionService(opts.Store, opts.Publisher),
		groups:       services.NewGroupService(opts.Store),
		budgets:      services.NewBudgetService(opts.Store),
		statistics:   services.NewStatisticsService(opts.Store),
		processor:    services.NewRecurringProcessor(opts.Store, opts.Parallelism),
		jobs:         jobs.NewRunner(time.Hour),

		detector:       security.NewDetector(),
		limiter:        ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		dashboardCache: cache.NewLRUCache[services.Dashboard](256, time.Minute),
		cacheManager:   cache.NewManager(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.cacheManager.Register(s.dashboardCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	chain := s.tracer.Middleware(
		headers.Middleware(
			s.flagSuspicious(
				s.limiter.Middleware(s.detector.ExtractClientIP, nil)(
					applog.Middleware(logger)(mux)))))

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           chain,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/users/me", s.authed(s.handleMe))
	mux.HandleFunc("PATCH /api/v1/users/me", s.authed(s.handleUpdateProfile))
	mux.HandleFunc("PUT /api/v1/users/me/settings", s.authed(s.handleUpdateSettings))
	mux.HandleFunc("PUT /api/v1/users/me/password", s.authed(s.handleChangePassword))

	mux.HandleFunc("POST /api/v1/transactions", s.authed(s.handleCreateTransaction))
	mux.HandleFunc("POST /api/v1/transactions/quick", s.authed(s.handleQuickAdd))
	mux.HandleFunc("GET /api/v1/transactions", s.authed(s.handleListTransactions))
	mux.HandleFunc("GET /api/v1/transactions/{id}", s.authed(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/v1/transactions/{id}", s.authed(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.authed(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/v1/categories", s.authed(s.handleCreateCategory))
	mux.HandleFunc("GET /api/v1/categories", s.authed(s.handleListCategories))
	mux.HandleFunc("PUT /api/v1/categories/{id}", s.authed(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/v1/categories/{id}", s.authed(s.handleDeleteCategory))

	mux.HandleFunc("POST /api/v1/rules", s.authed(s.handleCreateRule))
	mux.HandleFunc("GET /api/v1/rules", s.authed(s.handleListRules))
	mux.HandleFunc("GET /api/v1/rules/{id}", s.authed(s.handleGetRule))
	mux.HandleFunc("PUT /api/v1/rules/{id}", s.authed(s.handleUpdateRule))
	mux.HandleFunc("DELETE /api/v1/rules/{id}", s.authed(s.handleDeleteRule))
	mux.HandleFunc("POST /api/v1/rules/process", s.authed(s.handleProcessRules))
	mux.HandleFunc("POST /api/v1/rules/{id}/generate", s.authed(s.handleGenerateOne))
	mux.HandleFunc("GET /api/v1/jobs", s.authed(s.handleListJobs))
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.authed(s.handleGetJob))

	mux.HandleFunc("PUT /api/v1/budgets/{period}", s.authed(s.handleSetBudget))
	mux.HandleFunc("GET /api/v1/budgets", s.authed(s.handleListBudgets))
	mux.HandleFunc("GET /api/v1/budgets/{period}", s.authed(s.handleGetBudget))
	mux.HandleFunc("DELETE /api/v1/budgets/{period}", s.authed(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/v1/statistics/categories", s.authed(s.handleCategoryBreakdown))
	mux.HandleFunc("GET /api/v1/statistics/trend", s.authed(s.handleMonthlyTrend))
	mux.HandleFunc("GET /api/v1/statistics/balance", s.authed(s.handleBalance))
	mux.HandleFunc("GET /api/v1/dashboard", s.authed(s.handleDashboard))

	mux.HandleFunc("POST /api/v1/groups", s.authed(s.handleCreateGroup))
	mux.HandleFunc("GET /api/v1/groups/members", s.authed(s.handleGroupMembers))
	mux.HandleFunc("POST /api/v1/groups/invites", s.authed(s.handleCreateInvite))
	mux.HandleFunc("POST /api/v1/groups/join", s.authed(s.handleJoinGroup))
	mux.HandleFunc("POST /api/v1/groups/leave", s.authed(s.handleLeaveGroup))
}

// authedHandler receives the acting user's id alongside the request.
type authedHandler func(w http.ResponseWriter, r *http.Request, userID int64)

// authed resolves the caller from the X-User-ID header. Session
// management lives in the gateway in front of this service, so the
// header is trusted as-is.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			respondJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid X-User-ID header"})
			return
		}
		next(w, r, userID)
	}
}

// flagSuspicious logs requests matching known probe patterns. They are
// not blocked, only surfaced for review.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "suspicious request",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// invalidateDashboard drops the cached dashboard for one user after a
// write that changes its numbers.
func (s *Server) invalidateDashboard(userID int64) {
	s.dashboardCache.DeleteByPrefix(dashboardKey(userID))
}

func dashboardKey(userID int64) string {
	return "dashboard:" + strconv.FormatInt(userID, 10)
}

// Shutdown stops the background cleanup goroutines and then the HTTP
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.cacheManager.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
