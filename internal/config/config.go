package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	ServerAddress string
	JWTSecret     string
	JWTExpiration time.Duration

	StoreBackend string
	DataDir      string
	MongoURI     string
	MongoDB      string
	DatabaseURL  string
	StoreTimeout time.Duration

	RedisURL string
	LockTTL  time.Duration

	CORSOrigins []string

	BootstrapAdminName     string
	BootstrapAdminContact  string
	BootstrapAdminPassword string
}

// Load reads .env when present, then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return FromEnv()
}

func FromEnv() *Config {
	return &Config{
		ServerAddress:          getEnv("SERVER_ADDRESS", ":8080"),
		JWTSecret:              getEnv("JWT_SECRET", defaultJWTSecret),
		JWTExpiration:          getDurationEnv("JWT_EXPIRATION_HOURS", 168, time.Hour),
		StoreBackend:           strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DataDir:                getEnv("DATA_DIR", ""),
		MongoURI:               getEnv("MONGO_URI", ""),
		MongoDB:                getEnv("MONGO_DB", "helphive"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		StoreTimeout:           getDurationEnv("STORE_TIMEOUT_MS", 3000, time.Millisecond),
		RedisURL:               getEnv("REDIS_URL", ""),
		LockTTL:                getDurationEnv("LOCK_TTL_SECONDS", 10, time.Second),
		CORSOrigins:            splitList(getEnv("CORS_ORIGINS", "*")),
		BootstrapAdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		BootstrapAdminContact:  getEnv("BOOTSTRAP_ADMIN_CONTACT", ""),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("STORE_BACKEND=mongo requires MONGO_URI")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, mongo or postgres)", c.StoreBackend)
	}
	if (c.BootstrapAdminContact == "") != (c.BootstrapAdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_CONTACT and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if c.JWTSecret == defaultJWTSecret {
		log.Println("Warning: JWT_SECRET is unset, using the development default")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
