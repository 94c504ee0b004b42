package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/apperr"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

// RegisterRoutes: r は /auth グループを想定
func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	h := &Handler{svc: svc, log: log}
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.GET("/profile", RequireAuth(svc.Secret()), h.Profile)
	r.POST("/logout", RequireAuth(svc.Secret()), h.Logout)
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Signup godoc
// @Summary  Register a member account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body SignupRequest true "account"
// @Success  201 {object} UserResponse
// @Failure  409 {object} apperr.APIError
// @Router   /auth/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("name, email and password are required"))
		return
	}

	u, err := h.svc.Register(c.Request.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     RoleMember,
	})
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, u.Response())
}

// Login godoc
// @Summary  Log in and receive a bearer token
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body LoginRequest true "credentials"
// @Success  200 {object} LoginResponse
// @Failure  401 {object} apperr.APIError
// @Router   /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("email and password are required"))
		return
	}

	token, u, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: u.Response()})
}

func (h *Handler) Profile(c *gin.Context) {
	u, err := h.svc.Profile(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, u.Response())
}

// トークンはステートレスなのでクライアント側で破棄するだけ
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
