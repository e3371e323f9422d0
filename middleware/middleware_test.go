package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/psicoagenda/backend/config"
	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

func TestMain(m *testing.M) {
	os.Setenv("APPENV", "test")
	os.Setenv("GINMODE", "release")
	config.LoadConfig()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var middlewareTestModels = []interface{}{
	&model.User{},
	&model.Role{},
	&model.Session{},
}

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.ConnectDB()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}
	if err := db.AutoMigrate(middlewareTestModels...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	for _, m := range middlewareTestModels {
		db.Unscoped().Where("1 = 1").Delete(m)
	}
	if err := model.SeedRoles(db); err != nil {
		t.Fatalf("seed roles failed: %v", err)
	}
	t.Cleanup(func() {
		for _, m := range middlewareTestModels {
			db.Unscoped().Where("1 = 1").Delete(m)
		}
	})
	return db
}

func createSessionUser(t *testing.T, db *gorm.DB, email, token string, expiresAt time.Time) model.User {
	t.Helper()

	roleID, err := model.RoleIDByName(db, model.RolePatient)
	assert.NoError(t, err)

	salt, err := util.GenerateSalt()
	assert.NoError(t, err)
	hashed, err := util.HashPasswordArgon2("secreto1", salt)
	assert.NoError(t, err)

	user := model.User{Email: email, Password: hashed, PasswordSalt: salt, RoleID: roleID}
	assert.NoError(t, db.Create(&user).Error)

	session := model.Session{UserID: user.ID, SessionToken: token, ExpiresAt: expiresAt}
	assert.NoError(t, db.Create(&session).Error)
	return user
}

// protectedProbe registers a handler behind SessionAuth that reports the
// identity the middleware resolved.
func protectedProbe(db *gorm.DB, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(DatabaseMiddleware(db))
	handlers := append([]gin.HandlerFunc{SessionAuth()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := GetUserID(c)
		roleID, _ := GetRoleID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role_id": roleID})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestSessionAuth_MissingToken(t *testing.T) {
	db := setupAuthTestDB(t)
	r := protectedProbe(db)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuth_ValidCookie(t *testing.T) {
	db := setupAuthTestDB(t)
	user := createSessionUser(t, db, "valida@example.com", "token-valido", time.Now().Add(time.Hour))
	r := protectedProbe(db)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "token-valido"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf(`"user_id":%d`, user.ID))
}

func TestSessionAuth_HeaderFallback(t *testing.T) {
	db := setupAuthTestDB(t)
	createSessionUser(t, db, "cabecera@example.com", "token-cabecera", time.Now().Add(time.Hour))
	r := protectedProbe(db)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("session-token", "token-cabecera")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionAuth_ExpiredSession(t *testing.T) {
	db := setupAuthTestDB(t)
	createSessionUser(t, db, "caducada@example.com", "token-caducado", time.Now().Add(-time.Minute))
	r := protectedProbe(db)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "token-caducado"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuth_UnknownToken(t *testing.T) {
	db := setupAuthTestDB(t)
	r := protectedProbe(db)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "token-inexistente"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole_AllowsMatchingRole(t *testing.T) {
	db := setupAuthTestDB(t)
	createSessionUser(t, db, "rol-ok@example.com", "token-rol-ok", time.Now().Add(time.Hour))
	r := protectedProbe(db, RequireRole(model.RolePatient))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "token-rol-ok"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_RejectsOtherRole(t *testing.T) {
	db := setupAuthTestDB(t)
	createSessionUser(t, db, "rol-mal@example.com", "token-rol-mal", time.Now().Add(time.Hour))
	r := protectedProbe(db, RequireRole(model.RolePsychologist, model.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "token-rol-mal"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetDB_MissingMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetDB(c))
}
