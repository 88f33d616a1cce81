package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "umi_schedule", cfg.Database.Name)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, EventSinkLog, cfg.Events.Driver)
	assert.Equal(t, time.Second, cfg.Events.RetryDelay)
	assert.Equal(t, 10*time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, 500, cfg.Attendance.MaxBulkItems)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("EVENTS_DRIVER", " Redis ")
	v.Set("REPORT_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("JWT_AUDIENCE", "umi-web")

	cfg := fromViper(v)
	assert.Equal(t, EventSinkRedis, cfg.Events.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"umi-web"}, cfg.JWT.Audience)
}

func TestUnknownEventDriverFallsBackToLog(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("EVENTS_DRIVER", "kafka")

	assert.Equal(t, EventSinkLog, fromViper(v).Events.Driver)
}
