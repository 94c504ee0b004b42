package genres

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	h := &Handler{svc: svc, log: log}
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian)

	r.GET("/genres", h.List)
	r.GET("/genres/:id", h.Get)
	r.POST("/genres", staff, h.Create)
	r.PUT("/genres/:id", staff, h.Update)
	r.DELETE("/genres/:id", staff, h.Delete)
}

func genreID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// List godoc
// @Summary  Genres offered when adding a book
// @Tags     genres
// @Produce  json
// @Param    all query string false "include disabled (1|true)"
// @Success  200 {array} Genre
// @Security BearerAuth
// @Router   /genres [get]
func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), c.Query("all"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := genreID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("invalid id"))
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateGenreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("name is required"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req.Name)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := genreID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("invalid id"))
		return
	}
	var req UpdateGenreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("name is required"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := genreID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("invalid id"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
