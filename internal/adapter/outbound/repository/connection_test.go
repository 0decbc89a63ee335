package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		Database:        "batchflow",
		Username:        "batchflow",
		Password:        "secret",
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
	}
}

func TestDatabaseConfigValidate(t *testing.T) {
	t.Run("should accept valid configuration", func(t *testing.T) {
		assert.NoError(t, validDatabaseConfig().Validate())
	})

	testCases := []struct {
		name    string
		mutate  func(*DatabaseConfig)
		wantErr string
	}{
		{
			name:    "missing host",
			mutate:  func(c *DatabaseConfig) { c.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "zero port",
			mutate:  func(c *DatabaseConfig) { c.Port = 0 },
			wantErr: "port must be between",
		},
		{
			name:    "port too large",
			mutate:  func(c *DatabaseConfig) { c.Port = 70000 },
			wantErr: "port must be between",
		},
		{
			name:    "missing database",
			mutate:  func(c *DatabaseConfig) { c.Database = "" },
			wantErr: "database is required",
		},
		{
			name:    "missing username",
			mutate:  func(c *DatabaseConfig) { c.Username = "" },
			wantErr: "username is required",
		},
	}

	for _, tc := range testCases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			cfg := validDatabaseConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestDatabaseConfigConnString(t *testing.T) {
	t.Run("should build connection string with explicit ssl mode", func(t *testing.T) {
		cfg := validDatabaseConfig()
		cfg.SSLMode = "require"

		got := cfg.ConnString()

		assert.Equal(t, "host=localhost port=5432 dbname=batchflow user=batchflow password=secret sslmode=require", got)
	})

	t.Run("should default ssl mode to disable", func(t *testing.T) {
		got := validDatabaseConfig().ConnString()

		assert.Contains(t, got, "sslmode=disable")
	})
}
