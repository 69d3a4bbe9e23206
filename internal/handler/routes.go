package handler

import (
	"net/http"
	"time"

	httpadapter "github.com/ClareAI/astra-lead-service/internal/adapters/http"
	twilioadapter "github.com/ClareAI/astra-lead-service/internal/adapters/twilio"
	"github.com/ClareAI/astra-lead-service/internal/config"
	"github.com/ClareAI/astra-lead-service/internal/repository"
	"github.com/ClareAI/astra-lead-service/internal/services/lifecycle"
	"github.com/ClareAI/astra-lead-service/internal/services/messaging"
	"github.com/ClareAI/astra-lead-service/internal/services/notify"
	"github.com/ClareAI/astra-lead-service/internal/services/playbook"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
	"github.com/ClareAI/astra-lead-service/pkg/semantic"
	"github.com/gorilla/mux"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config      *config.AppConfig
	repoManager repository.RepositoryManager
	redisSvc    *redis.RedisService

	lifecycleSvc *lifecycle.Service
	messagingSvc *messaging.Service
	selector     *playbook.Selector
	indexer      *playbook.Indexer
}

// NewHandlerManager creates and initializes all services and their wiring.
func NewHandlerManager(cfg *config.AppConfig) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Redis is optional: without it there is no context cache and no live
	// notification fan-out, but the service still works.
	var redisSvc *redis.RedisService
	redisConfig := &redis.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	redisSvc, err = redis.NewRedisService(redisConfig)
	if err != nil {
		logger.Base().Warn("failed to initialize redis, running without context cache", zap.Error(err))
		redisSvc = nil
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	var cache messaging.ContextCache
	var selectorCache playbook.ContextCache
	var lifecycleCache lifecycle.ContextCache
	var publisher notify.Publisher
	if redisSvc != nil {
		cache = redisSvc
		selectorCache = redisSvc
		lifecycleCache = redisSvc
		publisher = redisSvc
	}

	messagingSvc := messaging.NewService(
		provider,
		repoManager.Lead(),
		repoManager.Conversation(),
		repoManager.Message(),
		cache,
		cfg.ContextTurns,
		cfg.ContextTTL,
	)

	emitter := notify.NewEmitter(repoManager.Notification(), publisher)

	lifecycleSvc := lifecycle.NewService(
		repoManager.Conversation(),
		repoManager.Operator(),
		repoManager.Audit(),
		emitter,
		messagingSvc,
		lifecycleCache,
		cfg.ReengagementThreshold,
		cfg.ReengagementMessage,
	)

	indexClient := semantic.NewClient(cfg.SemanticIndexURL, cfg.SemanticIndexAPIKey)

	var embedder playbook.EmbeddingClient
	if cfg.OpenAIAPIKey != "" {
		openaiClient := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		embedder = playbook.NewOpenAIEmbedder(openaiClient, cfg.EmbeddingModel)
	} else {
		logger.Base().Warn("OPENAI_API_KEY not set, playbook indexing disabled")
	}

	selector := playbook.NewSelector(
		indexClient,
		repoManager.Playbook(),
		selectorCache,
		repoManager.Message(),
		cfg.PlaybookTopK,
		cfg.PlaybookMinScore,
		cfg.ContextTurns,
	)
	indexer := playbook.NewIndexer(repoManager.Playbook(), indexClient, embedder, cfg.EmbeddingModel)

	logger.Base().Info("handler manager initialized",
		zap.String("messaging_provider", cfg.MessagingProvider),
		zap.Bool("redis", redisSvc != nil),
		zap.Bool("semantic_index", indexClient.IsConfigured()),
	)

	return &HandlerManager{
		config:       cfg,
		repoManager:  repoManager,
		redisSvc:     redisSvc,
		lifecycleSvc: lifecycleSvc,
		messagingSvc: messagingSvc,
		selector:     selector,
		indexer:      indexer,
	}, nil
}

// buildProvider picks the outbound messaging provider from configuration.
func buildProvider(cfg *config.AppConfig) (messaging.Provider, error) {
	switch cfg.MessagingProvider {
	case "twilio":
		sender, err := twilioadapter.NewSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return httpadapter.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayTenantID, cfg.GatewayAPIKey), nil
	}
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(CORSMiddleware)

	router.HandleFunc("/health", hm.Health).Methods("GET")

	hm.SetupAuthRoutes(router)
	hm.SetupAPIRoutes(router)
	hm.SetupWebhookRoutes(router)

	router.PathPrefix("/api/").HandlerFunc(handleCORS).Methods("OPTIONS")

	logger.Base().Info("all application routes registered")
}

// SetupAuthRoutes registers the login route outside JWT protection.
func (hm *HandlerManager) SetupAuthRoutes(router *mux.Router) {
	authRouter := router.PathPrefix("/api").Subrouter()
	authRouter.Use(LoggingMiddleware)
	authRouter.Use(ValidationMiddleware)

	authHandler := NewAuthHandler(
		hm.repoManager.Operator(),
		hm.config.JWTSecret,
		time.Duration(hm.config.JWTExpiryHours)*time.Hour,
	)
	authHandler.SetupAuthRoutes(authRouter)
}

// SetupAPIRoutes sets up the JWT-protected CRUD and lifecycle routes.
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()

	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(ValidationMiddleware)
	apiRouter.Use(JWTAuthMiddleware(hm.config.JWTSecret))

	leadHandler := NewLeadHandler(hm.repoManager.Lead())
	leadHandler.SetupLeadRoutes(apiRouter)

	conversationHandler := NewConversationHandler(
		hm.repoManager.Conversation(),
		hm.repoManager.Message(),
		hm.repoManager.Tag(),
		hm.repoManager.Audit(),
		hm.lifecycleSvc,
		hm.messagingSvc,
	)
	conversationHandler.SetupConversationRoutes(apiRouter)

	tagHandler := NewTagHandler(hm.repoManager.Tag())
	tagHandler.SetupTagRoutes(apiRouter)

	playbookHandler := NewPlaybookHandler(hm.repoManager.Playbook(), hm.selector, hm.indexer)
	playbookHandler.SetupPlaybookRoutes(apiRouter)

	var subscriber NotificationSubscriber
	if hm.redisSvc != nil {
		subscriber = hm.redisSvc
	}
	notificationHandler := NewNotificationHandler(hm.repoManager.Notification(), subscriber)
	notificationHandler.SetupNotificationRoutes(apiRouter)

	jobHandler := NewJobHandler(hm.lifecycleSvc)
	jobHandler.SetupJobRoutes(apiRouter)

	logger.Base().Info("api routes registered")
}

// SetupWebhookRoutes registers the gateway webhook routes.
func (hm *HandlerManager) SetupWebhookRoutes(router *mux.Router) {
	webhookHandler := NewWebhookHandler(hm.messagingSvc, hm.config.GatewayWebhookKey)
	webhookHandler.SetupWebhookRoutes(router)

	logger.Base().Info("webhook routes registered")
}

// Health godoc
// @Summary Service health
// @Description Report database and redis connectivity
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string "Service healthy"
// @Failure 503 {object} map[string]string "Dependency down"
// @Router /health [get]
func (hm *HandlerManager) Health(w http.ResponseWriter, r *http.Request) {
	if err := hm.repoManager.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close releases the manager's long-lived resources.
func (hm *HandlerManager) Close() {
	if hm.redisSvc != nil {
		if err := hm.redisSvc.Close(); err != nil {
			logger.Base().Warn("failed to close redis", zap.Error(err))
		}
	}
	if err := hm.repoManager.Close(); err != nil {
		logger.Base().Warn("failed to close database", zap.Error(err))
	}
}

// GetRepoManager returns the repository manager
func (hm *HandlerManager) GetRepoManager() repository.RepositoryManager {
	return hm.repoManager
}

// handleCORS handles CORS preflight requests for API routes
func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}
