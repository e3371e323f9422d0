package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds the application's configuration values.
type Config struct {
	AppName    string `json:"appname"`
	AppEnv     string `json:"appenv"`
	AppPort    uint16 `json:"appport"`
	GinMode    string `json:"ginmode"`
	DBHost     string `json:"dbhost"`
	DBPort     uint16 `json:"dbport"`
	DBName     string `json:"dbname"`
	DBUser     string `json:"dbuser"`
	DBPass     string `json:"dbpass"`
	SMTPHost   string `json:"smtphost"`
	SMTPPort   uint16 `json:"smtpport"`
	SMTPUser   string `json:"smtpuser"`
	SMTPPass   string `json:"smtppass"`
	ContactTo  string `json:"contactto"`
	SessionTTL time.Duration
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables from a .env file, and returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		// A missing .env file is fine in containers and CI; env vars win either way.
		if err := godotenv.Load(); err != nil {
			log.Printf("no .env file loaded: %v", err)
		}

		appPort, _ := strconv.ParseUint(os.Getenv("APPPORT"), 10, 16)
		dbPort, _ := strconv.ParseUint(os.Getenv("DBPORT"), 10, 16)
		smtpPort, _ := strconv.ParseUint(os.Getenv("SMTPPORT"), 10, 16)

		sessionTTL := time.Hour
		if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
			if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
				sessionTTL = time.Duration(mins) * time.Minute
			}
		}

		config = &Config{
			AppName:    os.Getenv("APPNAME"),
			AppEnv:     os.Getenv("APPENV"),
			AppPort:    uint16(appPort),
			GinMode:    os.Getenv("GINMODE"),
			DBHost:     os.Getenv("DBHOST"),
			DBPort:     uint16(dbPort),
			DBName:     os.Getenv("DBNAME"),
			DBUser:     os.Getenv("DBUSER"),
			DBPass:     os.Getenv("DBPASS"),
			SMTPHost:   os.Getenv("SMTPHOST"),
			SMTPPort:   uint16(smtpPort),
			SMTPUser:   os.Getenv("SMTPUSER"),
			SMTPPass:   os.Getenv("SMTPPASS"),
			ContactTo:  os.Getenv("CONTACT_INBOX"),
			SessionTTL: sessionTTL,
		}
	})
	return config
}

// ConnectDB establishes the database connection. In the test environment it
// opens a shared in-memory SQLite database so tests never require a running
// MySQL server; otherwise it connects to MySQL using the configured DSN.
func ConnectDB() (*gorm.DB, error) {
	cfg := LoadConfig()

	if cfg.AppEnv == "test" {
		return gorm.Open(sqlite.Open("file:psicoagenda_test?mode=memory&cache=shared"), &gorm.Config{})
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
