package observability

import (
	"testing"

	"github.com/smallbiznis/workforce/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizes(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:   " 1.2.3 ",
		Environment:  "Test",
		OTLPEndpoint: "collector:4317",
		Telemetry: config.TelemetryConfig{
			LogLevel:         "WARNING",
			LogFormat:        "text",
			TracingEnabled:   true,
			ExporterProtocol: "http/protobuf",
			SamplingRatio:    3,
		},
	})

	assert.Equal(t, "workforce", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestTracingNeedsEndpoint(t *testing.T) {
	cfg := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{TracingEnabled: true}})
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
}

func TestDebugFollowsLevelOutsideDev(t *testing.T) {
	cfg := Config{Environment: "production", LogLevel: "debug"}
	assert.True(t, cfg.Debug())
	cfg.LogLevel = "info"
	assert.False(t, cfg.Debug())
}

func TestProductionPinsJSONLogs(t *testing.T) {
	telemetry := config.TelemetryConfig{LogFormat: "console"}

	cfg := LoadConfig(config.Config{Environment: " Production ", Telemetry: telemetry})
	assert.Equal(t, "json", cfg.LogFormat)

	cfg = LoadConfig(config.Config{Environment: "development", Telemetry: telemetry})
	assert.Equal(t, "console", cfg.LogFormat)
}
