package accounts

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/paging"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

// RegisterRoutes: users は /users グループ、legacy は /borrow グループ（旧パスの一覧だけ）
func RegisterRoutes(users, legacy gin.IRoutes, svc *Service, log *zap.Logger) {
	h := &Handler{svc: svc, log: log}
	admin := auth.RequireRole(auth.RoleAdmin)
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian)

	users.GET("/members", staff, h.ListMembers)
	users.GET("/librarians", admin, h.ListLibrarians)
	users.POST("/librarians", admin, h.CreateLibrarian)
	users.PUT("/:id", admin, h.Update)
	users.DELETE("/:id", admin, h.Delete)

	legacy.GET("/members", staff, h.ListMembers)
	legacy.GET("/librarians", admin, h.ListLibrarians)
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) list(c *gin.Context, role string) {
	res, err := h.svc.List(c.Request.Context(), role, c.Query("q"), paging.FromQuery(c, "asc"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListMembers(c *gin.Context)    { h.list(c, auth.RoleMember) }
func (h *Handler) ListLibrarians(c *gin.Context) { h.list(c, auth.RoleLibrarian) }

// CreateLibrarian godoc
// @Summary  Create a librarian account
// @Tags     users
// @Accept   json
// @Produce  json
// @Param    body body CreateLibrarianRequest true "librarian"
// @Success  201 {object} auth.UserResponse
// @Failure  409 {object} apperr.APIError
// @Router   /users/librarians [post]
func (h *Handler) CreateLibrarian(c *gin.Context) {
	var req CreateLibrarianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("name, email and password are required"))
		return
	}
	res, err := h.svc.CreateLibrarian(c.Request.Context(), req)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("id must be a number"))
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("invalid json"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), auth.Current(c), id, req)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("id must be a number"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), auth.Current(c), id); err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
