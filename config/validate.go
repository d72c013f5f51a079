package config

import "fmt"

func validateConfig(cfg Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	switch cfg.StoreBackend {
	case "mysql":
		if cfg.DBHost == "" || cfg.DBUser == "" || cfg.DBName == "" {
			return fmt.Errorf("incomplete database settings for mysql store")
		}
	case "mongo":
		if cfg.MongoURI == "" || cfg.MongoDatabase == "" {
			return fmt.Errorf("incomplete mongo settings")
		}
	case "memory":
		switch cfg.DevUserRole {
		case "student", "teacher", "admin":
		default:
			return fmt.Errorf("unknown DEV_USER_ROLE %q", cfg.DevUserRole)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.StorageBackend {
	case "local":
		if cfg.LocalStoragePath == "" {
			return fmt.Errorf("LOCAL_STORAGE_PATH is not set")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is not set")
		}
	case "gcs":
		if cfg.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is not set")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.NotificationsEnabled && (cfg.SMTPHost == "" || cfg.SMTPUsername == "" || cfg.SMTPPassword == "") {
		return fmt.Errorf("incomplete SMTP settings with notifications enabled")
	}
	return nil
}
