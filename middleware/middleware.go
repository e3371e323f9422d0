package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/psicoagenda/backend/config"
	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

const (
	dbContextKey     = "db"
	userIDContextKey = "user_id"
	roleIDContextKey = "role_id"

	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "session_token"
)

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Content-Type", "application/json")

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// DatabaseMiddleware injects the shared gorm DB into the request context so
// handlers never reach for a process-wide handle.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(dbContextKey, db)
		c.Next()
	}
}

// GetDB returns the request-scoped gorm DB, or nil when the middleware did not run.
func GetDB(c *gin.Context) *gorm.DB {
	v, ok := c.Get(dbContextKey)
	if !ok {
		return nil
	}
	db, ok := v.(*gorm.DB)
	if !ok {
		return nil
	}
	return db
}

// GetUserID returns the authenticated user id set by SessionAuth.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetRoleID returns the authenticated user's role id set by SessionAuth.
func GetRoleID(c *gin.Context) (uint32, bool) {
	v, ok := c.Get(roleIDContextKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint32)
	return id, ok
}

// SetIdentityForTesting injects an authenticated identity into the context.
// Tests use this to exercise protected handlers without a full login flow.
func SetIdentityForTesting(c *gin.Context, userID uint, roleID uint32) {
	c.Set(userIDContextKey, userID)
	c.Set(roleIDContextKey, roleID)
}

// sessionToken extracts the session token from the cookie, falling back to
// the session-token header for non-browser clients.
func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	return c.GetHeader("session-token")
}

// lookupCachedSession resolves a token against Redis. Values are stored as
// "userID:roleID" by util.CacheSession.
func lookupCachedSession(token string) (uint, uint32, bool) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return 0, 0, false
	}
	val, err := rdb.Get(context.Background(), fmt.Sprintf("session:%s", token)).Result()
	if err != nil {
		return 0, 0, false
	}
	parts := strings.SplitN(val, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	userID, err1 := strconv.ParseUint(parts[0], 10, 32)
	roleID, err2 := strconv.ParseUint(parts[1], 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint(userID), uint32(roleID), true
}

// lookupStoredSession resolves a token against the sessions table, joining
// users for the role. Expired and soft-deleted sessions do not match.
func lookupStoredSession(db *gorm.DB, token string) (uint, uint32, bool) {
	var row struct {
		UserID uint
		RoleID uint32
	}
	err := db.Table("sessions").
		Select("sessions.user_id, users.role_id").
		Joins("JOIN users ON sessions.user_id = users.id").
		Where("session_token = ? AND expires_at > ? AND sessions.deleted_at IS NULL", token, time.Now()).
		Take(&row).Error
	if err != nil {
		return 0, 0, false
	}
	return row.UserID, row.RoleID, true
}

// SessionAuth validates the session cookie and stores the authenticated
// identity in the request context. Redis is consulted first; the sessions
// table is authoritative when Redis is unavailable or misses.
func SessionAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Sesión no iniciada",
				Err: fmt.Errorf("session token not provided"),
			})
			c.Abort()
			return
		}

		userID, roleID, ok := lookupCachedSession(token)
		if !ok {
			db := GetDB(c)
			if db == nil {
				util.CallServerError(c, util.APIErrorParams{
					Msg: "Database connection not available",
					Err: fmt.Errorf("db is nil"),
				})
				c.Abort()
				return
			}
			userID, roleID, ok = lookupStoredSession(db, token)
		}
		if !ok {
			util.LogSecurityEvent(util.SecurityEvent{
				EventType: util.EventUnauthorizedAccess,
				IP:        c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
				Message:   fmt.Sprintf("Invalid session on %s", c.Request.URL.Path),
			})
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Sesión inválida o expirada",
				Err: fmt.Errorf("invalid or expired session"),
			})
			c.Abort()
			return
		}

		c.Set(userIDContextKey, userID)
		c.Set(roleIDContextKey, roleID)
		c.Next()
	}
}

// RequireRole restricts an endpoint to users whose role matches one of the
// given role names. Must run after SessionAuth.
func RequireRole(roleNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleID, ok := GetRoleID(c)
		if !ok {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Sesión no iniciada",
				Err: fmt.Errorf("role not found in context"),
			})
			c.Abort()
			return
		}

		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Database connection not available",
				Err: fmt.Errorf("db is nil"),
			})
			c.Abort()
			return
		}

		var role model.Role
		if err := db.First(&role, roleID).Error; err != nil {
			util.CallUserForbidden(c, util.APIErrorParams{
				Msg: "Acceso denegado",
				Err: fmt.Errorf("unknown role"),
			})
			c.Abort()
			return
		}
		for _, name := range roleNames {
			if role.Name == name {
				c.Next()
				return
			}
		}

		util.CallUserForbidden(c, util.APIErrorParams{
			Msg: "Acceso denegado",
			Err: fmt.Errorf("role %s not allowed", role.Name),
		})
		c.Abort()
	}
}
