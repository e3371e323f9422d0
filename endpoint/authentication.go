package endpoint

import (
	"fmt"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/psicoagenda/backend/config"
	"github.com/psicoagenda/backend/middleware"
	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

// User-facing messages carried over from the product. The login flow
// deliberately distinguishes unknown email from wrong password.
const (
	msgEmailNotRegistered = "El correo no está registrado."
	msgWrongPassword      = "Contraseña incorrecta."
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+\-()\s]{6,}$`)
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

type LoginResponse struct {
	Usuario UsuarioInfo `json:"usuario"`
}

// UsuarioInfo is the identity payload the front end stores after login.
type UsuarioInfo struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Rol   string `json:"Rol"`
}

// helper types and functions to simplify Login flow
type clientInfo struct {
	IP    string
	Agent string
}

type loginContext struct {
	C     *gin.Context
	DB    *gorm.DB
	Email string
	CI    clientInfo
}

// Login godoc
// @Summary      User login
// @Description  Authenticate with email and password, establishing a session cookie
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} util.APIResponse{data=LoginResponse} "Login successful"
// @Failure      400 {object} util.APIResponse "Invalid request payload"
// @Failure      401 {object} util.APIResponse "Unknown email or wrong password"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /login [post]
func Login(c *gin.Context) {
	var req LoginRequest

	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	ci := clientInfo{IP: c.ClientIP(), Agent: c.Request.UserAgent()}
	ctx := loginContext{C: c, DB: db, Email: req.Email, CI: ci}

	user, ok := loadUserForLogin(ctx)
	if !ok {
		return
	}

	if !ensureAccountNotLocked(ctx, &user) {
		return
	}

	if !verifyPasswordOrRespond(ctx, &user, req.Password) {
		return
	}

	finalizeLogin(ctx, &user)
}

func loadUserForLogin(ctx loginContext) (model.User, bool) {
	user, err := loadUserByEmail(ctx.DB, ctx.Email)
	if err == gorm.ErrRecordNotFound {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "user not found")
		util.CallUserNotAuthorized(ctx.C, util.APIErrorParams{Msg: msgEmailNotRegistered, Err: fmt.Errorf(msgEmailNotRegistered)})
		return model.User{}, false
	}
	if err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "database error")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Database error", Err: fmt.Errorf("failed to load user")})
		return model.User{}, false
	}
	return user, true
}

func ensureAccountNotLocked(ctx loginContext, user *model.User) bool {
	if locked, expiry := isAccountLocked(user); locked {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "account locked")
		util.CallUserNotAuthorized(ctx.C, util.APIErrorParams{
			Msg: fmt.Sprintf("Cuenta bloqueada hasta %s por intentos fallidos", expiry.Format(time.RFC3339)),
			Err: fmt.Errorf("account locked"),
		})
		return false
	}
	return true
}

func verifyPasswordOrRespond(ctx loginContext, user *model.User, plain string) bool {
	match, err := util.VerifyPassword(plain, user.Password, user.PasswordSalt)
	if err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "password verification error")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Password verification failed", Err: fmt.Errorf("verification failed")})
		return false
	}
	if !match {
		incrementFailedAttempts(ctx.DB, user, ctx.CI)
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "invalid password")
		util.CallUserNotAuthorized(ctx.C, util.APIErrorParams{Msg: msgWrongPassword, Err: fmt.Errorf(msgWrongPassword)})
		return false
	}
	return true
}

func finalizeLogin(ctx loginContext, user *model.User) bool {
	if err := resetFailedAttempts(ctx.DB, user); err != nil {
		util.LogSecurityEvent(util.SecurityEvent{
			EventType: util.EventSuspiciousActivity,
			UserID:    fmt.Sprintf("%d", user.ID),
			Email:     user.Email,
			IP:        ctx.CI.IP,
			Message:   fmt.Sprintf("Failed to reset failed attempts: %v", err),
		})
	}

	var role model.Role
	if err := ctx.DB.First(&role, user.RoleID).Error; err != nil {
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Database error", Err: fmt.Errorf("role not found")})
		return false
	}

	ttl := config.LoadConfig().SessionTTL
	tokenString, err := createSessionToken(*user, ttl)
	if err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "token generation failed")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Could not generate token", Err: fmt.Errorf("token generation failed")})
		return false
	}

	session := model.Session{
		UserID:       user.ID,
		SessionToken: tokenString,
		ExpiresAt:    time.Now().Add(ttl),
		ClientIP:     ctx.CI.IP,
		Browser:      ctx.CI.Agent,
	}
	if err := ctx.DB.Create(&session).Error; err != nil {
		util.LogLoginFailure(ctx.Email, ctx.CI.IP, ctx.CI.Agent, "session creation failed")
		util.CallServerError(ctx.C, util.APIErrorParams{Msg: "Failed to record session", Err: fmt.Errorf("session creation failed")})
		return false
	}

	// Mirror the session in Redis (best-effort) and hand the cookie out.
	_ = util.CacheSession(tokenString, user.ID, user.RoleID, time.Until(session.ExpiresAt))
	ctx.C.SetCookie(middleware.SessionCookieName, tokenString, int(ttl.Seconds()), "/", "", false, true)

	util.LogLoginSuccess(user.ID, user.Email, ctx.CI.IP, ctx.CI.Agent)
	util.CallSuccessOK(ctx.C, util.APISuccessParams{
		Msg:  "Login successful",
		Data: LoginResponse{Usuario: UsuarioInfo{ID: user.ID, Email: user.Email, Rol: role.Name}},
	})
	return true
}

func loadUserByEmail(db *gorm.DB, email string) (model.User, error) {
	var user model.User
	err := db.Model(&user).Where("email = ?", email).First(&user).Error
	return user, err
}

func isAccountLocked(user *model.User) (bool, time.Time) {
	if user.LockedUntil != nil && *user.LockedUntil > time.Now().Unix() {
		return true, time.Unix(*user.LockedUntil, 0)
	}
	return false, time.Time{}
}

func incrementFailedAttempts(db *gorm.DB, user *model.User, ci clientInfo) {
	user.FailedAttempts++
	if user.FailedAttempts >= 5 {
		lockUntil := time.Now().Add(15 * time.Minute).Unix()
		user.LockedUntil = &lockUntil
		util.LogAccountLocked(user.ID, user.Email, ci.IP, "too many failed login attempts")
	}
	if err := db.Save(user).Error; err != nil {
		util.LogLoginFailure(user.Email, ci.IP, ci.Agent, "failed to update failed attempts")
	}
}

func resetFailedAttempts(db *gorm.DB, user *model.User) error {
	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		user.FailedAttempts = 0
		user.LockedUntil = nil
		return db.Save(user).Error
	}
	return nil
}

// createSessionToken signs a JWT used as the opaque session cookie value.
// The uuid jti keeps concurrent logins for the same user distinct.
func createSessionToken(user model.User, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"role":  user.RoleID,
		"jti":   uuid.NewString(),
		"exp":   time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(util.GetJWTSecretByte())
}

// Logout godoc
// @Summary      User logout
// @Description  Invalidate the session and clear the cookie
// @Tags         Authentication
// @Produce      json
// @Success      200 {object} util.APIResponse "Logout successful"
// @Failure      400 {object} util.APIResponse "Session not found"
// @Failure      401 {object} util.APIResponse "No session"
// @Router       /logout [delete]
func Logout(c *gin.Context) {
	sessionToken, err := c.Cookie(middleware.SessionCookieName)
	if err != nil || sessionToken == "" {
		sessionToken = c.GetHeader("session-token")
	}
	if sessionToken == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Sesión no iniciada",
			Err: fmt.Errorf("session token not provided"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var session model.Session
	if err := db.Where("session_token = ?", sessionToken).First(&session).Error; err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Session not found", Err: err})
		return
	}

	var user model.User
	if err := db.First(&user, session.UserID).Error; err == nil {
		util.LogLogout(user.ID, user.Email, c.ClientIP(), c.Request.UserAgent())
	}

	if err := db.Where("session_token = ?", sessionToken).Delete(&session).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete session", Err: fmt.Errorf("session delete failed")})
		return
	}

	_ = util.DropCachedSession(session.UserID, sessionToken)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Logout successful"})
}

type RegisterRequest struct {
	First    string `json:"first" example:"Ana"`
	Last     string `json:"last" example:"García"`
	Age      int    `json:"age" example:"28"`
	Phone    string `json:"phone" example:"+34 600 123 456"`
	Email    string `json:"email" example:"ana@example.com"`
	Password string `json:"password" example:"secreto1"`
}

// validateRegisterRequest returns a user-facing message for the first failed
// validation, or "" when the request is acceptable.
func validateRegisterRequest(req *RegisterRequest) string {
	req.First = util.NormalizeName(req.First)
	req.Last = util.NormalizeName(req.Last)

	switch {
	case req.First == "" || req.Last == "":
		return "El nombre y los apellidos son obligatorios."
	case req.Age < 18:
		return "Debes ser mayor de edad para registrarte."
	case !emailPattern.MatchString(req.Email):
		return "El correo electrónico no es válido."
	case !phonePattern.MatchString(req.Phone):
		return "El teléfono no es válido."
	case len(req.Password) < 6:
		return "La contraseña debe tener al menos 6 caracteres."
	}
	return ""
}

// Register godoc
// @Summary      Patient registration
// @Description  Create a user account with the Patient role and its patient profile
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} util.APIResponse "Registration successful"
// @Failure      400 {object} util.APIResponse "Validation failure or email already registered"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /register [post]
func Register(c *gin.Context) {
	var req RegisterRequest

	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	if msg := validateRegisterRequest(&req); msg != "" {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: fmt.Errorf("validation failed")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	if !ensureEmailAvailable(c, db, req.Email) {
		return
	}

	salt, err := util.GenerateSalt()
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to generate password salt", Err: fmt.Errorf("salt generation failed")})
		return
	}
	hashedPassword, err := util.HashPasswordArgon2(req.Password, salt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to hash password", Err: fmt.Errorf("password hashing failed")})
		return
	}

	roleID, err := model.RoleIDByName(db, model.RolePatient)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Roles not seeded", Err: fmt.Errorf("role lookup failed")})
		return
	}

	// User account and patient profile are created together or not at all.
	err = db.Transaction(func(tx *gorm.DB) error {
		user := model.User{
			Email:        req.Email,
			Password:     hashedPassword,
			PasswordSalt: salt,
			RoleID:       roleID,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		patient := model.Patient{
			UserID:      &user.ID,
			FirstName:   req.First,
			LastName:    req.Last,
			Age:         req.Age,
			PhoneNumber: req.Phone,
		}
		return tx.Create(&patient).Error
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create account", Err: fmt.Errorf("registration failed")})
		return
	}

	util.LogSecurityEvent(util.SecurityEvent{
		EventType: util.EventRegisterSuccess,
		Email:     req.Email,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Message:   "Patient registered successfully",
	})

	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Registro completado"})
}

func ensureEmailAvailable(c *gin.Context, db *gorm.DB, email string) bool {
	var existingUser model.User
	err := db.First(&existingUser, "email = ?", email).Error
	if err != gorm.ErrRecordNotFound {
		if err == nil {
			util.CallUserError(c, util.APIErrorParams{Msg: "El correo ya está registrado.", Err: fmt.Errorf("email already exists")})
			return false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: fmt.Errorf("email lookup failed")})
		return false
	}
	return true
}
