package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"LIBRIS-backend/internal/platform/apperr"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.Body(apperr.ErrUnauthenticated(msg)))
}

func forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, apperr.Body(apperr.ErrForbidden(msg)))
}

// TokenFromHeader: "Bearer <token>" と生トークンの両方を受け付ける
// （旧フロントの画面によって付け方がまちまちだったため）
func TokenFromHeader(h string) string {
	h = strings.TrimSpace(h)
	if parts := strings.SplitN(h, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if strings.ContainsAny(h, " \t") {
		return ""
	}
	return h
}

// RequireAuth: Authorization ヘッダを検証して context に user_id/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			unauthorized(c, "missing Authorization header")
			return
		}

		tokenStr := TokenFromHeader(h)
		if tokenStr == "" {
			unauthorized(c, "invalid Authorization header")
			return
		}

		id, role, err := ParseToken(secret, tokenStr)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		c.Set(CtxUserIDKey, id)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := CurrentRole(c)
		if role == "" {
			forbidden(c, "missing role")
			return
		}
		if _, allowed := roleSet[role]; !allowed {
			forbidden(c, "forbidden")
			return
		}
		c.Next()
	}
}

func CurrentUserID(c *gin.Context) int64 {
	if v, ok := c.Get(CtxUserIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

func CurrentRole(c *gin.Context) string {
	if v, ok := c.Get(CtxRoleKey); ok {
		if r, ok := v.(string); ok {
			return r
		}
	}
	return ""
}

// Principal はサービス層に渡す呼び出し元
type Principal struct {
	UserID int64
	Role   string
}

func (p Principal) IsStaff() bool { return IsStaff(p.Role) }

func Current(c *gin.Context) Principal {
	return Principal{UserID: CurrentUserID(c), Role: CurrentRole(c)}
}
