package books

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

// RegisterRoutes: r は認証済みグループ。更新系は司書・管理者のみ。
func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	h := &Handler{svc: svc, log: log}
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian)

	r.GET("/books", h.ListBooks)
	r.GET("/books/:id", h.GetBook)
	r.POST("/books", staff, h.CreateBook)
	r.PUT("/books/:id", staff, h.UpdateBook)
	r.DELETE("/books/:id", staff, h.DeleteBook)
}

func bookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListBooks godoc
// @Summary  List books
// @Tags     books
// @Produce  json
// @Param    q      query string false "title / author search"
// @Param    genre  query string false "genre"
// @Param    limit  query int    false "page size"
// @Param    offset query int    false "offset"
// @Success  200 {object} paging.List[BookResponse]
// @Router   /books [get]
func (h *Handler) ListBooks(c *gin.Context) {
	q := BookQuery{Q: c.Query("q"), Genre: c.Query("genre")}
	res, err := h.svc.ListBooks(c.Request.Context(), paging.FromQuery(c, "desc"), q)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("id must be a number"))
		return
	}
	res, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateBook godoc
// @Summary  Add a book
// @Tags     books
// @Accept   json
// @Produce  json
// @Param    body body CreateBookRequest true "book"
// @Success  201 {object} BookResponse
// @Router   /books [post]
func (h *Handler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateBook(c.Request.Context(), req)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.Header("Location", "/books/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("id must be a number"))
		return
	}
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("invalid json"))
		return
	}
	res, err := h.svc.UpdateBook(c.Request.Context(), id, req)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		apperr.Abort(c, h.log, apperr.ErrInvalid("id must be a number"))
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), id); err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
