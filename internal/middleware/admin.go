package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailroom/backend/internal/auth"
	"mailroom/backend/internal/domain"
)

// RoleAuth 角色权限中间件
type RoleAuth struct {
	authService *auth.AuthService
}

// NewRoleAuth 创建角色权限中间件
func NewRoleAuth(authService *auth.AuthService) *RoleAuth {
	return &RoleAuth{
		authService: authService,
	}
}

// RequireManager 要求主管及以上权限（联系人与员工管理）
func (a *RoleAuth) RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.currentUser(c)
		if !ok {
			return
		}

		if !user.CanManage() {
			c.JSON(http.StatusForbidden, gin.H{"error": "manager access required"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// RequireAdmin 要求系统管理员权限
func (a *RoleAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.currentUser(c)
		if !ok {
			return
		}

		if !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// RequireRole 要求特定角色
func (a *RoleAuth) RequireRole(allowedRoles ...domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.currentUser(c)
		if !ok {
			return
		}

		allowed := false
		for _, role := range allowedRoles {
			if user.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// currentUser 从上下文取出 JWT 中间件写入的用户并加载账号。
// 失败时写响应并中止请求。
func (a *RoleAuth) currentUser(c *gin.Context) (*domain.User, bool) {
	userIDVal, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
		return nil, false
	}

	userID, ok := userIDVal.(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user context"})
		c.Abort()
		return nil, false
	}

	user, err := a.authService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		c.Abort()
		return nil, false
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		c.Abort()
		return nil, false
	}
	return user, true
}
