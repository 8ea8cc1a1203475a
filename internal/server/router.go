package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/manufactureflow/backend/internal/analytics"
	"github.com/manufactureflow/backend/internal/auth"
	"github.com/manufactureflow/backend/internal/inventory"
	"github.com/manufactureflow/backend/internal/production"
	"github.com/manufactureflow/backend/internal/quality"
	"github.com/manufactureflow/backend/internal/relay"
	"github.com/manufactureflow/backend/internal/users"
)

const sessionClaimsContextKey = "manufactureflow_session_claims"

var (
	errMissingAccountService    = errors.New("account service dependency required")
	errMissingTokenManager      = errors.New("token manager dependency required")
	errMissingProductionService = errors.New("production service dependency required")
	errMissingInventoryService  = errors.New("inventory service dependency required")
	errMissingQualityService    = errors.New("quality service dependency required")
	errMissingRegistry          = errors.New("relay registry dependency required")
	errMissingBroadcaster       = errors.New("relay broadcaster dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates session tokens.
type TokenManager interface {
	IssueToken(ctx context.Context, claims auth.SessionClaims) (string, int64, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP surface to the domain services and the relay.
type Dependencies struct {
	Accounts    *users.Service
	Tokens      TokenManager
	Production  *production.Service
	Inventory   *inventory.Service
	Quality     *quality.Service
	Analytics   *analytics.Service
	Registry    *relay.Registry
	Broadcaster relay.Publisher
	Logger      *zap.Logger
	RateLimit   RateLimitConfig
}

// NewHTTPHandler validates dependencies and assembles the router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Production == nil {
		return nil, errMissingProductionService
	}
	if deps.Inventory == nil {
		return nil, errMissingInventoryService
	}
	if deps.Quality == nil {
		return nil, errMissingQualityService
	}
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}
	if deps.Broadcaster == nil {
		return nil, errMissingBroadcaster
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	if deps.RateLimit.RequestsPerSecond > 0 {
		router.Use(rateLimitMiddleware(deps.RateLimit))
	}

	handler := &httpHandler{
		accounts:   deps.Accounts,
		tokens:     deps.Tokens,
		production: deps.Production,
		inventory:  deps.Inventory,
		quality:    deps.Quality,
		analytics:  deps.Analytics,
		logger:     logger,
	}
	socket := newSocketHandler(deps.Registry, deps.Broadcaster, logger)

	router.GET("/health", handler.handleHealth)
	router.POST("/api/auth/register", handler.handleRegister)
	router.POST("/api/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	{
		protected.GET("/ws", socket.handleConnection)

		protected.GET("/api/production", handler.handleListOrders)
		protected.POST("/api/production", handler.handleCreateOrder)
		protected.GET("/api/production/:id", handler.handleGetOrder)
		protected.PUT("/api/production/:id", handler.handleUpdateOrder)
		protected.DELETE("/api/production/:id", handler.handleDeleteOrder)
		protected.PUT("/api/production/work-orders/:id/status", handler.handleWorkOrderStatus)

		protected.GET("/api/inventory", handler.handleListMaterials)
		protected.POST("/api/inventory", handler.handleCreateMaterial)
		protected.PUT("/api/inventory/:id", handler.handleUpdateMaterial)
		protected.DELETE("/api/inventory/:id", handler.handleDeleteMaterial)
		protected.POST("/api/inventory/:id/movements", handler.handleRecordMovement)
		protected.GET("/api/inventory/movements", handler.handleListMovements)
		protected.GET("/api/inventory/low-stock", handler.handleLowStock)

		protected.GET("/api/quality", handler.handleListChecks)
		protected.POST("/api/quality", handler.handleCreateCheck)
		protected.PUT("/api/quality/:id/status", handler.handleCheckStatus)

		protected.GET("/api/analytics/dashboard", handler.handleDashboard)
	}

	return router, nil
}

type httpHandler struct {
	accounts   *users.Service
	tokens     TokenManager
	production *production.Service
	inventory  *inventory.Service
	quality    *quality.Service
	analytics  *analytics.Service
	logger     *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type registerRequestPayload struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department"`
}

type loginRequestPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponsePayload struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	TokenType   string        `json:"token_type"`
	User        users.Account `json:"user"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), users.RegisterRequest{
		Username:   request.Username,
		Email:      request.Email,
		Password:   request.Password,
		Role:       request.Role,
		FirstName:  request.FirstName,
		LastName:   request.LastName,
		Department: request.Department,
	})
	if errors.Is(err, users.ErrDuplicateUsername) {
		c.JSON(http.StatusConflict, gin.H{"error": "username_taken"})
		return
	}
	if errors.Is(err, users.ErrInvalidAccount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.logger.Error("failed to register account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	h.issueSession(c, account, http.StatusCreated)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Login(c.Request.Context(), request.Username, request.Password)
	if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrAccountDisabled) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err != nil {
		h.logger.Error("failed to login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	h.issueSession(c, account, http.StatusOK)
}

func (h *httpHandler) issueSession(c *gin.Context, account users.Account, status int) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), auth.SessionClaims{
		Subject:    account.ID,
		Username:   account.Username,
		Role:       account.Role,
		Department: account.Department,
	})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(status, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        account,
	})
}

// authorizeRequest accepts the session token from the Authorization header
// or, for websocket upgrades where browsers cannot set headers, from the
// token query parameter.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionClaimsContextKey, claims)
	c.Next()
}

func sessionClaims(c *gin.Context) (auth.SessionClaims, bool) {
	value, ok := c.Get(sessionClaimsContextKey)
	if !ok {
		return auth.SessionClaims{}, false
	}
	claims, ok := value.(auth.SessionClaims)
	return claims, ok
}
