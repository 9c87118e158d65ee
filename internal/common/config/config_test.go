package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("デフォルト値で読み込み", func(t *testing.T) {
		t.Setenv("ENV", "")
		t.Setenv("APP_TIMEZONE", "UTC")
		t.Setenv("SBCNTR_ENABLE_TRACING", "")

		cfg, err := LoadConfig("token")
		require.NoError(t, err)

		assert.Equal(t, "token", cfg.SFN.TaskToken)
		assert.Equal(t, 5432, cfg.DB.Port)
		assert.Equal(t, 8080, cfg.HTTP.Port)
		assert.Equal(t, 5*time.Minute, cfg.Retry.BaseDelay)
		assert.Equal(t, 24*time.Hour, cfg.Retry.MaxDelay)
		assert.Equal(t, 5, cfg.Retry.MaxAttempts)
		assert.Equal(t, 500, cfg.Reservation.CompletionBatchSize)
		assert.Equal(t, "UTC", cfg.Reservation.Location.String())
		assert.False(t, cfg.EnableTracing)
	})

	t.Run("環境変数で上書き", func(t *testing.T) {
		t.Setenv("APP_TIMEZONE", "UTC")
		t.Setenv("API_PORT", "9090")
		t.Setenv("REQUEST_TIMEOUT", "3s")
		t.Setenv("RETRY_MAX_ATTEMPTS", "2")
		t.Setenv("SBCNTR_ENABLE_TRACING", "true")
		t.Setenv("AWS_XRAY_SDK_DISABLED", "")

		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTP.Port)
		assert.Equal(t, 3*time.Second, cfg.HTTP.RequestTimeout)
		assert.Equal(t, 2, cfg.Retry.MaxAttempts)
		assert.True(t, cfg.EnableTracing)
	})

	t.Run("不正なタイムゾーン", func(t *testing.T) {
		t.Setenv("APP_TIMEZONE", "Not/AZone")

		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("最大遅延が基本遅延より短い", func(t *testing.T) {
		t.Setenv("APP_TIMEZONE", "UTC")
		t.Setenv("RETRY_BASE_DELAY", "1h")
		t.Setenv("RETRY_MAX_DELAY", "1m")

		_, err := LoadConfig("")
		assert.Error(t, err)
	})
}
