package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psicoagenda/backend/middleware"
	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

// ValidateToken godoc
// @Summary      Validate session token
// @Description  Validate if the session is valid and not expired
// @Tags         Authentication
// @Produce      json
// @Success      200 {object} util.APIResponse "Valid session"
// @Failure      401 {object} util.APIResponse "Invalid or expired session"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /token/validate [get]
func ValidateToken(c *gin.Context) {
	sessionToken, err := c.Cookie(middleware.SessionCookieName)
	if err != nil || sessionToken == "" {
		sessionToken = c.GetHeader("session-token")
	}
	if sessionToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	// Join sessions, users, and roles to retrieve the role name aliased as 'role'
	var result struct {
		model.Session
		Role string `json:"role"`
	}
	err = db.Table("sessions").
		Select("sessions.*, roles.name as role").
		Joins("JOIN users ON sessions.user_id = users.id").
		Joins("JOIN roles ON users.role_id = roles.id").
		Where("session_token = ? AND expires_at > ? AND sessions.deleted_at IS NULL", sessionToken, time.Now()).
		First(&result).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Valid session token",
		Data: result,
	})
}
