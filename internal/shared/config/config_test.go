package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.SQLServer.Port != 1433 {
		t.Errorf("Expected SQL Server port 1433, got %d", cfg.SQLServer.Port)
	}
	if cfg.SQLServer.CommandTimeout != 60*time.Second {
		t.Errorf("Expected 60s command timeout, got %v", cfg.SQLServer.CommandTimeout)
	}
	if cfg.Database.MaxConns != 4 || cfg.Database.MinConns != 0 {
		t.Errorf("Expected directory pool 0..4, got %d..%d", cfg.Database.MinConns, cfg.Database.MaxConns)
	}
	if cfg.Auth.Enabled {
		t.Error("Expected auth disabled outside production")
	}
	if !cfg.Auth.DevTokens {
		t.Error("Expected dev tokens enabled outside production")
	}
	if cfg.TCM.ReadmissionMode != ReadmissionLinked {
		t.Errorf("Expected linked readmission mode, got %s", cfg.TCM.ReadmissionMode)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("Expected wildcard CORS origin, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MSSQL_HOST", "sql.internal")
	t.Setenv("MSSQL_ENCRYPT", "true")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("TCM_READMISSION_MODE", "WINDOW")
	t.Setenv("AUTH_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.SQLServer.Host != "sql.internal" {
		t.Errorf("Expected sql.internal, got %s", cfg.SQLServer.Host)
	}
	if !strings.Contains(cfg.SQLServer.ConnectionString(), "encrypt=true") {
		t.Errorf("Expected encrypted connection string, got %s", cfg.SQLServer.ConnectionString())
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("Unexpected CORS origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.TCM.ReadmissionMode != ReadmissionWindow {
		t.Errorf("Expected window mode, got %s", cfg.TCM.ReadmissionMode)
	}
	if !cfg.Auth.Enabled {
		t.Error("Expected auth enabled")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Unknown readmission mode", map[string]string{"TCM_READMISSION_MODE": "causal"}},
		{"Production with dev secret", map[string]string{"ENV": "production"}},
		{"Production with dev tokens", map[string]string{"ENV": "production", "JWT_SECRET": "s3cret", "AUTH_DEV_TOKENS": "true"}},
		{"Port out of range", map[string]string{"SERVER_PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestLoadProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !cfg.Auth.Enabled {
		t.Error("Expected auth enabled in production")
	}
	if cfg.Auth.DevTokens {
		t.Error("Expected dev tokens disabled in production")
	}
}
