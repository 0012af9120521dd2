package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "org_ledger", cfg.Database.Name)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, int64(5), cfg.Pin.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Pin.LockWindow)
	assert.Equal(t, 200, cfg.HistoryMaxLimit)
	assert.Equal(t, uint8(4), cfg.Argon2.Threads)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("PIN_MAX_ATTEMPTS", "3")
	t.Setenv("PIN_LOCK_WINDOW", "90s")
	t.Setenv("JWT_SECRET_KEY", "s3cret")

	assert.NoError(t, Init(""))
	cfg := Load()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, int64(3), cfg.Pin.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Pin.LockWindow)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}
