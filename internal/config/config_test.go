package config

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_ADDRESS", "JWT_EXPIRATION_HOURS", "STORE_BACKEND", "STORE_TIMEOUT_MS", "LOCK_TTL_SECONDS", "CORS_ORIGINS", "MONGO_DB"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.ServerAddress != ":8080" {
		t.Errorf("ServerAddress = %q", cfg.ServerAddress)
	}
	if cfg.JWTExpiration != 168*time.Hour {
		t.Errorf("JWTExpiration = %v", cfg.JWTExpiration)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.StoreTimeout != 3*time.Second || cfg.LockTTL != 10*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.StoreTimeout, cfg.LockTTL)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.MongoDB != "helphive" {
		t.Errorf("MongoDB = %q", cfg.MongoDB)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/helphive")
	t.Setenv("STORE_TIMEOUT_MS", "250")
	t.Setenv("JWT_EXPIRATION_HOURS", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg := FromEnv()
	if cfg.StoreBackend != BackendPostgres {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Errorf("StoreTimeout = %v", cfg.StoreTimeout)
	}
	if cfg.JWTExpiration != 168*time.Hour {
		t.Errorf("bad int should fall back to default, got %v", cfg.JWTExpiration)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{StoreBackend: BackendMemory}, false},
		{"mongo without uri", Config{StoreBackend: BackendMongo}, true},
		{"mongo", Config{StoreBackend: BackendMongo, MongoURI: "mongodb://localhost"}, false},
		{"postgres without url", Config{StoreBackend: BackendPostgres}, true},
		{"unknown backend", Config{StoreBackend: "sqlite"}, true},
		{"half bootstrap", Config{StoreBackend: BackendMemory, BootstrapAdminContact: "a@b.c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
