package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	PostgresURI    string
	RedisURI       string
	BlueskyPDS     string
	ProfileBaseURL string
	FrontendURL    string
	R2             R2
	SecretKey      string
	CookieName     string
	AdminPassword  string
	AdminAPIKey    string
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:    getEnv("POSTGRES_URI", ""),
		RedisURI:       getEnv("REDIS_URI", "127.0.0.1:6379"),
		BlueskyPDS:     getEnv("BLUESKY_PDS", "https://bsky.social"),
		ProfileBaseURL: getEnv("PROFILE_BASE_URL", "https://bsky.app/profile/"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		SecretKey:     getEnv("SECRET_KEY", ""),
		CookieName:    getEnv("COOKIE_NAME", "skybridge_session"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminAPIKey:   getEnv("ADMIN_API_KEY", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
