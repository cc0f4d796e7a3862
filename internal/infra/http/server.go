package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"consentledger/internal/config"
	"consentledger/internal/domain"
	"consentledger/internal/infra/commitlog"
	"consentledger/internal/infra/db"
	"consentledger/internal/infra/memstore"
	"consentledger/internal/infra/ratelimit"
	"consentledger/internal/usecase"
)

// TenantStore creates tenants; the verify surface never touches it.
type TenantStore interface {
	Create(ctx context.Context, name string) (string, error)
}

type Server struct {
	cfg    config.Config
	logger *zap.Logger
	r      *gin.Engine

	verifier    *usecase.Verifier
	lineage     *usecase.Lineage
	system      *usecase.SystemEvents
	identity    *usecase.Identity
	assertions  *usecase.Assertions
	anchors     *usecase.Anchors
	idempotency usecase.IdempotencyStore
	tenants     TenantStore

	adminAPIKey string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

// NewServer wires the full dependency graph: database repositories when the
// store has a connection, in-memory stores otherwise.
func NewServer(cfg config.Config, logger *zap.Logger, store *db.Store) (*Server, error) {
	var (
		ledgers     usecase.LedgerStore
		registry    usecase.IdentityRegistry
		idempotency usecase.IdempotencyStore
		tenants     TenantStore
	)
	if store.Available() {
		ledgers = db.NewLedgerRepository(store.DB)
		registry = db.NewIdentityRepository(store.DB)
		idempotency = db.NewIdempotencyRepository(store.DB)
		tenants = db.NewTenantRepository(store.DB)
	} else {
		logger.Info("no database configured, using in-memory stores")
		ledgers = memstore.NewLedger()
		registry = memstore.NewRegistry()
		idempotency = memstore.NewIdempotency()
		tenants = memstore.NewTenants()
	}

	var signer *usecase.Signer
	if cfg.SigningMode != config.SigningModeDisabled && cfg.HasSigningKey() {
		var err error
		signer, err = usecase.NewSigner(cfg.SigningIdentityID, cfg.SigningPrivateKeySeedHex)
		if err != nil {
			return nil, err
		}
	}

	var commit usecase.CommitLog
	if cfg.AnchorCommitPath != "" {
		commit = commitlog.NewFile(cfg.AnchorCommitPath)
	}

	appender := usecase.NewAppender(ledgers, nil)
	deps := ServerDeps{
		Ledgers:     ledgers,
		Registry:    registry,
		Idempotency: idempotency,
		Tenants:     tenants,
		Signer:      signer,
		Commit:      commit,
		Appender:    appender,
	}
	return NewServerWithDeps(cfg, logger, deps), nil
}

// ServerDeps lets tests inject stores and a fixed clock.
type ServerDeps struct {
	Ledgers     usecase.LedgerStore
	Registry    usecase.IdentityRegistry
	Idempotency usecase.IdempotencyStore
	Tenants     TenantStore
	Signer      *usecase.Signer
	Commit      usecase.CommitLog
	Appender    *usecase.Appender
	RateLimiter domain.RateLimiter
	Clock       usecase.Clock
}

func NewServerWithDeps(cfg config.Config, logger *zap.Logger, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	if deps.Appender == nil {
		deps.Appender = usecase.NewAppender(deps.Ledgers, deps.Clock)
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		r:           r,
		verifier:    usecase.NewVerifier(),
		lineage:     &usecase.Lineage{Appender: deps.Appender, Store: deps.Ledgers, Signer: deps.Signer},
		system:      usecase.NewSystemEvents(deps.Appender, deps.Ledgers, deps.Clock),
		identity:    usecase.NewIdentity(deps.Registry, deps.Appender, deps.Clock),
		assertions:  &usecase.Assertions{Appender: deps.Appender, Store: deps.Ledgers, Registry: deps.Registry, Signer: deps.Signer},
		anchors:     usecase.NewAnchors(deps.Ledgers, deps.Commit, deps.Clock),
		idempotency: deps.Idempotency,
		tenants:     deps.Tenants,
		adminAPIKey: cfg.AdminAPIKey,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(nil, s.cfg.RateLimitMaxKeys)
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.r.Group("/v1")
	{
		verify := v1.Group("", s.rateLimitMiddleware())
		{
			verify.POST("/lineage/verify", s.handleVerifyLineage)
			verify.POST("/proofs/verify", s.handleVerifyProof)
			verify.POST("/anchors/verify", s.handleVerifyAnchor)
			verify.POST("/system/verify", s.handleVerifySystem)
		}

		v1.GET("/tenants/:tenant_id/consents/:consent_id/lineage", s.handleLineageExport)
		v1.GET("/system/export", s.handleSystemExport)

		v1.POST("/tenants", s.handleCreateTenant)
		v1.POST("/tenants/:tenant_id/consents/:consent_id/events", s.handleAppendEvent)
		v1.POST("/tenants/:tenant_id/identities", s.handleRegisterIdentity)
		v1.POST("/tenants/:tenant_id/identities/:identity_id/delegate", s.handleDelegateIdentity)
		v1.POST("/tenants/:tenant_id/identities/:identity_id/revoke", s.handleRevokeIdentity)
		v1.POST("/tenants/:tenant_id/assertions", s.handleIssueAssertion)
		v1.GET("/tenants/:tenant_id/assertions/:sequence/proof", s.handleAssertionProof)
		v1.POST("/admin/anchors/snapshot", s.handleAnchorSnapshot)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown route")
	})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
