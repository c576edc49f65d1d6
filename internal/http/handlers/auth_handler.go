package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/services"
)

// AuthService is the account surface the auth endpoints need.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Get(ctx context.Context, id string) (*domain.User, bool, error)
}

// AuthHandler serves /auth.
type AuthHandler struct {
	svc AuthService
}

// NewAuthHandler binds the auth endpoints to svc.
func NewAuthHandler(svc AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// RegisterRequest is the payload of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" example:"Ana Georgiou"`
	Email    string `json:"email" example:"ana@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

// LoginRequest is the payload of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"ana@example.com"`
	Password string `json:"password" binding:"required" example:"s3cret!"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	Role      domain.Role `json:"role" example:"student"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type" example:"Bearer"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func userResponse(u domain.User) UserResponse {
	created := u.CreatedAt
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: &created}
}

// Register godoc
// @ID          register
// @Summary     Create a student account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterRequest  true  "Account"
// @Success     201  {object}  handlers.UserResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "email already registered"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.svc.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, userResponse(*u))
}

// Login godoc
// @ID          login
// @Summary     Exchange credentials for a bearer token
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}
	sess, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{
		Token:     sess.Token,
		TokenType: "Bearer",
		ExpiresAt: sess.ExpiresAt,
		User:      userResponse(sess.User),
	})
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UserResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	u, exists, err := h.svc.Get(c.Request.Context(), a.ID)
	if err != nil {
		failErr(c, err)
		return
	}
	if !exists {
		// Demo-header identities have no stored account.
		ok(c, http.StatusOK, UserResponse{ID: a.ID, Name: a.Name, Role: a.Role})
		return
	}
	ok(c, http.StatusOK, userResponse(*u))
}
