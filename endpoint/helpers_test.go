package endpoint

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/psicoagenda/backend/config"
	"github.com/psicoagenda/backend/middleware"
	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

// endpointTestModels defines the standard set of models migrated for endpoint tests
var endpointTestModels = []interface{}{
	&model.User{},
	&model.Role{},
	&model.Session{},
	&model.Patient{},
	&model.Psychologist{},
	&model.Specialty{},
	&model.Appointment{},
	&model.ClinicalNote{},
	&model.SecurityLog{},
}

// setupEndpointTestDB initializes the shared in-memory test database with all
// standard models migrated and roles/specialties seeded. Cleanup is
// registered via t.Cleanup().
func setupEndpointTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.ConnectDB()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}

	if err := db.AutoMigrate(endpointTestModels...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	for _, m := range endpointTestModels {
		db.Unscoped().Where("1 = 1").Delete(m)
	}

	if err := model.SeedRoles(db); err != nil {
		t.Fatalf("seed roles failed: %v", err)
	}
	if err := model.SeedSpecialties(db); err != nil {
		t.Fatalf("seed specialties failed: %v", err)
	}

	t.Cleanup(func() {
		for _, m := range endpointTestModels {
			db.Unscoped().Where("1 = 1").Delete(m)
		}
	})

	return db
}

// setupEndpointTest returns a Gin engine and database connection configured for endpoint tests.
func setupEndpointTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupEndpointTestDB(t)
	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))
	return r, db
}

type requestSpec struct {
	method       string
	registerPath string
	requestPath  string
	handler      gin.HandlerFunc
	body         interface{}
	headers      map[string]string
	// identity, when set, is injected into the context before the handler
	// runs, standing in for a validated session.
	identity *testIdentity
}

type testIdentity struct {
	userID uint
	roleID uint32
}

func performRequest(r *gin.Engine, spec requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	var reader *strings.Reader
	setJSONHeader := false
	switch v := spec.body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(v)
		setJSONHeader = true
	default:
		b, _ := json.Marshal(spec.body)
		reader = strings.NewReader(string(b))
		setJSONHeader = true
	}

	req := httptest.NewRequest(spec.method, spec.requestPath, reader)
	if setJSONHeader {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range spec.headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			return w, nil, err
		}
	}
	return w, response, nil
}

func doRequestWithHandler(r *gin.Engine, spec requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	handlers := []gin.HandlerFunc{}
	if spec.identity != nil {
		id := *spec.identity
		handlers = append(handlers, func(c *gin.Context) {
			middleware.SetIdentityForTesting(c, id.userID, id.roleID)
			c.Next()
		})
	}
	handlers = append(handlers, spec.handler)

	switch spec.method {
	case http.MethodGet:
		r.GET(spec.registerPath, handlers...)
	case http.MethodPost:
		r.POST(spec.registerPath, handlers...)
	case http.MethodPatch:
		r.PATCH(spec.registerPath, handlers...)
	case http.MethodDelete:
		r.DELETE(spec.registerPath, handlers...)
	default:
		r.Handle(spec.method, spec.registerPath, handlers...)
	}
	return performRequest(r, spec)
}

// assertStatus asserts that the response HTTP status code matches the expected value
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, w.Code)
}

// assertSuccessResponse asserts that the response indicates success with HTTP 200
func assertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, response map[string]interface{}) {
	t.Helper()
	assert.Equal(t, http.StatusOK, w.Code)
	if response == nil {
		return
	}
	if success, ok := response["success"].(bool); ok {
		assert.True(t, success)
	}
}

// createTestPatientUser creates a User with the Patient role plus its patient
// profile and returns both.
func createTestPatientUser(t *testing.T, db *gorm.DB, email string) (model.User, model.Patient) {
	t.Helper()

	roleID, err := model.RoleIDByName(db, model.RolePatient)
	assert.NoError(t, err)

	salt, err := util.GenerateSalt()
	assert.NoError(t, err)
	hashed, err := util.HashPasswordArgon2("secreto1", salt)
	assert.NoError(t, err)

	user := model.User{Email: email, Password: hashed, PasswordSalt: salt, RoleID: roleID}
	assert.NoError(t, db.Create(&user).Error)

	patient := model.Patient{
		UserID:      &user.ID,
		FirstName:   "Ana",
		LastName:    fmt.Sprintf("García%d", time.Now().UnixNano()%1000),
		Age:         30,
		PhoneNumber: "+34 600 123 456",
	}
	assert.NoError(t, db.Create(&patient).Error)
	return user, patient
}

// createTestPsychologistUser creates a User with the Psychologist role plus
// its psychologist profile.
func createTestPsychologistUser(t *testing.T, db *gorm.DB, email string) (model.User, model.Psychologist) {
	t.Helper()

	roleID, err := model.RoleIDByName(db, model.RolePsychologist)
	assert.NoError(t, err)

	salt, err := util.GenerateSalt()
	assert.NoError(t, err)
	hashed, err := util.HashPasswordArgon2("secreto1", salt)
	assert.NoError(t, err)

	user := model.User{Email: email, Password: hashed, PasswordSalt: salt, RoleID: roleID}
	assert.NoError(t, db.Create(&user).Error)

	var specialty model.Specialty
	assert.NoError(t, db.First(&specialty).Error)

	psych := model.Psychologist{
		UserID:      &user.ID,
		FirstName:   "Luis",
		LastName:    "Moreno",
		SpecialtyID: specialty.ID,
	}
	assert.NoError(t, db.Create(&psych).Error)
	return user, psych
}

func patientIdentity(user model.User) *testIdentity {
	return &testIdentity{userID: user.ID, roleID: user.RoleID}
}

func mustTime(t *testing.T, fecha, hora string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04", fecha+" "+hora, time.Local)
	assert.NoError(t, err)
	return parsed
}
