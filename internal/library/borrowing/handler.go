package borrowing

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

// RegisterRoutes: r は認証済みの /borrow グループ
func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	h := &Handler{svc: svc, log: log}
	member := auth.RequireRole(auth.RoleMember)
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian)

	// 1. 貸出申請
	r.POST("/request", member, h.SubmitRequest)
	r.GET("/check-request/:bookId", member, h.CheckRequest)
	r.GET("/status", member, h.MemberStatus)

	// 2. 承認・却下（司書）
	r.GET("/get-requests", staff, h.PendingRequests)
	r.POST("/approve", staff, h.Approve)
	r.POST("/reject", staff, h.Reject)

	// 3. 返却
	r.POST("/returnreq", member, h.RequestReturn)
	// 旧フロント互換（book_id 指定）
	r.POST("/return", member, h.RequestReturnByBook)
	r.POST("/returnack", staff, h.AcknowledgeReturn)

	// 4. 一覧（ロールで範囲が変わる）
	r.GET("/not-returned-books", member, h.NotReturned)
	r.GET("/return-pending", h.ReturnPending)
	r.GET("/all-return-pending", staff, h.ReturnPending)
	r.GET("/overdue", h.Overdue)
	r.GET("/history", h.History)
}

// ---------- handlers ----------

// SubmitRequest godoc
// @Summary  Request to borrow a book
// @Tags     borrow
// @Accept   json
// @Produce  json
// @Param    body body SubmitRequest true "book"
// @Success  201 {object} RequestResult
// @Failure  409 {object} apperr.APIError
// @Router   /borrow/request [post]
func (h *Handler) SubmitRequest(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("book_id is required"))
		return
	}
	res, err := h.svc.SubmitRequest(c.Request.Context(), auth.CurrentUserID(c), req.BookID)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CheckRequest(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		apperr.Abort(c, h.log, apperr.ErrInvalid("bookId must be a number"))
		return
	}
	res, err := h.svc.HasRequested(c.Request.Context(), auth.CurrentUserID(c), bookID)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MemberStatus(c *gin.Context) {
	res, err := h.svc.MemberRequests(c.Request.Context(), auth.CurrentUserID(c), paging.FromQuery(c, "desc"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PendingRequests godoc
// @Summary  Pending borrow requests, oldest first
// @Tags     borrow
// @Produce  json
// @Success  200 {object} paging.List[RequestResponse]
// @Router   /borrow/get-requests [get]
func (h *Handler) PendingRequests(c *gin.Context) {
	res, err := h.svc.PendingRequests(c.Request.Context(), paging.FromQuery(c, "asc"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Approve godoc
// @Summary  Approve a pending request and create the borrow
// @Tags     borrow
// @Accept   json
// @Produce  json
// @Param    body body ApproveRequest true "request"
// @Success  200 {object} RequestResult
// @Failure  409 {object} apperr.APIError
// @Router   /borrow/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("request_id is required"))
		return
	}
	res, err := h.svc.Approve(c.Request.Context(), auth.CurrentUserID(c), req.RequestID)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reject godoc
// @Summary  Reject a pending request with a reason
// @Tags     borrow
// @Accept   json
// @Produce  json
// @Param    body body RejectRequest true "request and reason"
// @Success  200 {object} RequestResult
// @Failure  400 {object} apperr.APIError
// @Router   /borrow/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("request_id is required"))
		return
	}
	res, err := h.svc.Reject(c.Request.Context(), auth.CurrentUserID(c), req.RequestID, req.Reason)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RequestReturn(c *gin.Context) {
	var req BorrowIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("borrow_id is required"))
		return
	}
	res, err := h.svc.RequestReturn(c.Request.Context(), auth.CurrentUserID(c), req.BorrowID)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RequestReturnByBook(c *gin.Context) {
	var req ReturnByBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("book_id is required"))
		return
	}
	res, err := h.svc.RequestReturnByBook(c.Request.Context(), auth.CurrentUserID(c), req.BookID)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AcknowledgeReturn(c *gin.Context) {
	var req BorrowIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, h.log, apperr.ErrInvalid("borrow_id is required"))
		return
	}
	res, err := h.svc.AcknowledgeReturn(c.Request.Context(), auth.CurrentUserID(c), req.BorrowID)
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) NotReturned(c *gin.Context) {
	res, err := h.svc.NotReturned(c.Request.Context(), auth.CurrentUserID(c), paging.FromQuery(c, "desc"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ReturnPending(c *gin.Context) {
	res, err := h.svc.ReturnPending(c.Request.Context(), auth.Current(c), paging.FromQuery(c, "asc"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Overdue godoc
// @Summary  Unreturned borrows past their expected return date
// @Tags     borrow
// @Produce  json
// @Success  200 {object} paging.List[BorrowResponse]
// @Router   /borrow/overdue [get]
func (h *Handler) Overdue(c *gin.Context) {
	res, err := h.svc.Overdue(c.Request.Context(), auth.Current(c), paging.FromQuery(c, "asc"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) History(c *gin.Context) {
	res, err := h.svc.History(c.Request.Context(), auth.Current(c), paging.FromQuery(c, "desc"))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
