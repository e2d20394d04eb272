package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort          string
	Environment         string
	ScriptURL           string
	FirebaseProject     string
	FirebaseCredentials string
	ChatBackend         string // "firestore" or "polling"

	MessagePollInterval  time.Duration
	PresencePollInterval time.Duration

	RestreamClientID     string
	RestreamClientSecret string
	RestreamTokenURL     string
	RestreamWebSocketURL string

	JWTSecret string
	JWTExpiry int64
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		ScriptURL:           getEnv("SCRIPT_URL", ""),
		FirebaseProject:     getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		ChatBackend:         getEnv("CHAT_BACKEND", "polling"),

		MessagePollInterval:  time.Duration(getEnvAsInt64("MESSAGE_POLL_SECONDS", 10)) * time.Second,
		PresencePollInterval: time.Duration(getEnvAsInt64("PRESENCE_POLL_SECONDS", 30)) * time.Second,

		RestreamClientID:     getEnv("RESTREAM_CLIENT_ID", ""),
		RestreamClientSecret: getEnv("RESTREAM_CLIENT_SECRET", ""),
		RestreamTokenURL:     getEnv("RESTREAM_TOKEN_URL", "https://api.restream.io/oauth/token"),
		RestreamWebSocketURL: getEnv("RESTREAM_WS_URL", "wss://chat.restream.io/ws"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry: getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
