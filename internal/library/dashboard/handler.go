package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

// RegisterRoutes: r は認証済みの /borrow グループ
func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	h := &Handler{svc: svc, log: log}
	r.GET("/lib-stats", auth.RequireRole(auth.RoleAdmin, auth.RoleLibrarian), h.LibStats)
	r.GET("/dashboard", auth.RequireRole(auth.RoleAdmin), h.AdminDashboard)
	r.GET("/member-overview", auth.RequireRole(auth.RoleMember), h.MemberOverview)
	r.GET("/member-notifications", auth.RequireRole(auth.RoleMember), h.MemberNotifications)
}

// LibStats godoc
// @Summary  Librarian dashboard counters
// @Tags     dashboard
// @Produce  json
// @Success  200 {object} LibStats
// @Router   /borrow/lib-stats [get]
func (h *Handler) LibStats(c *gin.Context) {
	res, err := h.svc.LibStats(c.Request.Context())
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AdminDashboard(c *gin.Context) {
	res, err := h.svc.AdminDashboard(c.Request.Context())
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MemberOverview(c *gin.Context) {
	res, err := h.svc.MemberOverview(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MemberNotifications(c *gin.Context) {
	res, err := h.svc.MemberNotifications(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		apperr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
