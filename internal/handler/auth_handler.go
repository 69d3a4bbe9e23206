package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/internal/repository"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles operator authentication
type AuthHandler struct {
	operatorRepo *repository.OperatorRepository
	jwtSecret    string
	jwtExpiry    time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(operatorRepo *repository.OperatorRepository, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		operatorRepo: operatorRepo,
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
	}
}

// SetupAuthRoutes registers the unauthenticated auth routes.
func (h *AuthHandler) SetupAuthRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
}

// LoginRequest is the operator login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Operator  *domain.Operator `json:"operator"`
}

// Login godoc
// @Summary Operator login
// @Description Authenticate an operator and issue a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Operator credentials"
// @Success 200 {object} LoginResponse "Token issued"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	operator, err := h.operatorRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if operator == nil || !operator.Active {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		logger.Base().Warn("failed login attempt",
			zap.String("email", req.Email),
			zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	expiresAt := time.Now().Add(h.jwtExpiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   operator.ID,
		"email": operator.Email,
		"role":  operator.Role,
		"iss":   "astra-lead-service",
		"iat":   time.Now().Unix(),
		"exp":   expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Operator:  operator,
	})
}
