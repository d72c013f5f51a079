package config

import (
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Config holds the application settings read from the environment.
type Config struct {
	ServerPort           string
	StoreBackend         string // mysql, mongo or memory
	DBHost               string
	DBPort               string
	DBUser               string
	DBPassword           string
	DBName               string
	MongoURI             string
	MongoDatabase        string
	JWTSecret            string
	LogLevel             string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	MailFrom             string
	NotificationsEnabled bool
	FrontendURL          string
	BackendURL           string
	StorageBackend       string // local, s3 or gcs
	S3Region             string
	S3Bucket             string
	GCSProjectID         string
	GCSBucketName        string
	GCSCredentialsFile   string
	LocalStoragePath     string
	DevUserID            string // seeded into the memory store
	DevUserName          string
	DevUserRole          string
	Debug                bool
}

// AppConfig is the process-wide configuration.
var AppConfig Config

// Init loads .env (if present) and the environment into AppConfig.
func Init() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	AppConfig = Load()

	if err := validateConfig(AppConfig); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if AppConfig.Debug {
		gin.SetMode(gin.DebugMode)
		log.Println("running in debug mode")
	} else {
		gin.SetMode(gin.ReleaseMode)
		log.Println("running in release mode")
	}

	log.Printf("configuration loaded: store=%s storage=%s", AppConfig.StoreBackend, AppConfig.StorageBackend)
}

// Load reads the configuration from the environment without validating it.
func Load() Config {
	return Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		StoreBackend:         getEnv("STORE_BACKEND", "mysql"),
		DBHost:               getEnv("DB_HOST", ""),
		DBPort:               getEnv("DB_PORT", "3306"),
		DBUser:               getEnv("DB_USER", ""),
		DBPassword:           getEnv("DB_PASSWORD", ""),
		DBName:               getEnv("DB_NAME", "course_forum"),
		MongoURI:             getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase:        getEnv("MONGODB_DATABASE", "course_forum"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		SMTPHost:             getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:             getEnvAsInt("SMTP_PORT", 465),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		MailFrom:             getEnv("MAIL_FROM", ""),
		NotificationsEnabled: getEnvAsBool("NOTIFICATIONS_ENABLED", false),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
		BackendURL:           getEnv("BACKEND_URL", "http://localhost:8080"),
		StorageBackend:       getEnv("STORAGE_BACKEND", "local"),
		S3Region:             getEnv("S3_REGION", "us-west-2"),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		GCSProjectID:         getEnv("GCS_PROJECT_ID", ""),
		GCSBucketName:        getEnv("GCS_BUCKET_NAME", ""),
		GCSCredentialsFile:   getEnv("GCS_CREDENTIALS_FILE", ""),
		LocalStoragePath:     getEnv("LOCAL_STORAGE_PATH", "./uploads"),
		DevUserID:            getEnv("DEV_USER_ID", ""),
		DevUserName:          getEnv("DEV_USER_NAME", "dev"),
		DevUserRole:          getEnv("DEV_USER_ROLE", "admin"),
		Debug:                getEnvAsBool("DEBUG", false),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}
