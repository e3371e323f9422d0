// main.go
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psicoagenda/backend/config"
	"github.com/psicoagenda/backend/endpoint"
	"github.com/psicoagenda/backend/middleware"
	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

func main() {
	cfg := config.LoadConfig()

	db, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{}, &model.Role{}, &model.Session{},
		&model.Patient{}, &model.Psychologist{}, &model.Specialty{},
		&model.Appointment{}, &model.ClinicalNote{}, &model.SecurityLog{},
	); err != nil {
		log.Fatalf("Error migrating schema: %v", err)
	}
	if err := model.SeedRoles(db); err != nil {
		log.Fatalf("Error seeding roles: %v", err)
	}
	if err := model.SeedSpecialties(db); err != nil {
		log.Fatalf("Error seeding specialties: %v", err)
	}

	util.SetSecurityLoggerDB(db)
	if err := util.InitGeoIP(""); err != nil {
		log.Printf("GeoIP disabled: %v", err)
	}
	if _, err := config.ConnectRedis(); err != nil {
		log.Printf("Redis unavailable, falling back to DB sessions: %v", err)
	}

	gin.SetMode(cfg.GinMode)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.EndpointCallLogger())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})

	// Public surface
	router.POST("/login", middleware.RateLimiter(middleware.RateLimitConfig{Limit: 5, Window: 15 * time.Minute}), endpoint.Login)
	router.POST("/register", endpoint.Register)
	router.POST("/contact", endpoint.ContactForm)

	// Session-protected surface
	auth := router.Group("/", middleware.SessionAuth())
	auth.DELETE("/logout", endpoint.Logout)
	auth.GET("/token/validate", endpoint.ValidateToken)

	auth.POST("/appointment", endpoint.BookAppointment)
	auth.PATCH("/appointment/:id", endpoint.EditAppointment)
	auth.DELETE("/appointment/:id", endpoint.CancelAppointment)
	auth.GET("/appointment/calendar", endpoint.CalendarFeed)
	auth.GET("/appointment/next", endpoint.NextAppointment)

	auth.GET("/psychologist", endpoint.ListPsychologists)

	psych := auth.Group("/patient", middleware.RequireRole(model.RolePsychologist, model.RoleAdmin))
	psych.GET("/roster", endpoint.PatientsRoster)
	psych.POST("/:id/notes", endpoint.CreateClinicalNote)
	psych.GET("/:id/notes", endpoint.ListClinicalNotes)

	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
