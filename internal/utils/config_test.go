package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/switchbot-bridge/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MQTT_BROKER", "MQTT_PORT", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_CLIENT_ID",
		"MQTT_TLS", "MQTT_CA_CERTIFICATE", "MQTT_QOS", "MQTT_SMARTLOCK_BASE_TOPIC",
		"MQTT_GENERIC_BASE_TOPIC", "SWITCHBOT_TOKEN", "SWITCHBOT_SECRET", "API_BASEURL",
		"SWITCHBOT_DEVICE_TYPE_SMARTLOCK", "SWITCHBOT_VALID_DEVICE_ID",
		"SWITCHBOT_SMARTLOCK_VALID_COMMAND", "SWITCHBOT_POLLING_INTERVAL_SEC",
		"HTTP_PORT", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("SWITCHBOT_TOKEN", "token")
	t.Setenv("SWITCHBOT_SECRET", "secret")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	setCredentials(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.MQTT.Broker)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "switchbot_api2mqtt", cfg.MQTT.ClientID)
	assert.Equal(t, "smarthome/smartlock/", cfg.Topics.SmartLockBase)
	assert.Equal(t, "switchbot/api/generic/", cfg.Topics.GenericBase)
	assert.Equal(t, "https://api.switch-bot.com/v1.1/", cfg.SwitchBot.BaseURL)
	assert.Equal(t, "WoLockPro", cfg.SwitchBot.SmartLockDeviceType)
	assert.Equal(t, ":80", cfg.Services.Webhook.ListenAddr)
	assert.Equal(t, "/sb", cfg.Services.Webhook.Path)
	assert.Equal(t, time.Duration(0), cfg.PollingInterval())
	assert.Empty(t, cfg.SwitchBot.ValidDeviceIDs)
}

func TestLoadConfig_YamlThenEnv(t *testing.T) {
	clearEnv(t)
	setCredentials(t)
	path := writeConfig(t, `
mqtt:
  broker: broker.lan
  port: 8883
  qos: 1
topics:
  smartlock_base: home/locks
switchbot:
  valid_device_ids: ["FROMFILE"]
services:
  poller:
    interval_sec: 300
`)
	t.Setenv("MQTT_BROKER", "env-broker")
	t.Setenv("SWITCHBOT_VALID_DEVICE_ID", `["AAA","BBB"]`)
	t.Setenv("SWITCHBOT_SMARTLOCK_VALID_COMMAND", `["lock","unlock"]`)
	t.Setenv("HTTP_PORT", "8080")

	cfg, err := LoadConfig(path, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "env-broker", cfg.MQTT.Broker)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, 1, cfg.MQTT.QOS)
	assert.Equal(t, "home/locks/", cfg.Topics.SmartLockBase)
	assert.Equal(t, []string{"AAA", "BBB"}, cfg.SwitchBot.ValidDeviceIDs)
	assert.Equal(t, []string{"lock", "unlock"}, cfg.SwitchBot.ValidCommands)
	assert.Equal(t, ":8080", cfg.Services.Webhook.ListenAddr)
	assert.Equal(t, 300*time.Second, cfg.PollingInterval())
}

func TestLoadConfig_EmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	setCredentials(t)
	path := writeConfig(t, "")

	cfg, err := LoadConfig(path, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.MQTT.Broker)
}

func TestLoadConfig_BaseURLNormalized(t *testing.T) {
	clearEnv(t)
	setCredentials(t)
	t.Setenv("API_BASEURL", "https://api.example.com/v1.1")

	cfg, err := LoadConfig("", file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1.1/", cfg.SwitchBot.BaseURL)
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig("", file.NewFileService(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "switchbot.token is required")
	assert.Contains(t, err.Error(), "switchbot.secret is required")
}

func TestLoadConfig_MalformedDeviceList(t *testing.T) {
	clearEnv(t)
	setCredentials(t)
	t.Setenv("SWITCHBOT_VALID_DEVICE_ID", "AAA,BBB")

	_, err := LoadConfig("", file.NewFileService(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SWITCHBOT_VALID_DEVICE_ID")
}

func TestLoadConfig_InvalidPollingIntervalDisablesPolling(t *testing.T) {
	clearEnv(t)
	setCredentials(t)
	t.Setenv("SWITCHBOT_POLLING_INTERVAL_SEC", "soon")

	cfg, err := LoadConfig("", file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Services.Poller.IntervalSec)
	assert.Equal(t, time.Duration(0), cfg.PollingInterval())
}

func TestLoadConfig_ShortPollingIntervalClamped(t *testing.T) {
	clearEnv(t)
	setCredentials(t)
	t.Setenv("SWITCHBOT_POLLING_INTERVAL_SEC", "15")

	cfg, err := LoadConfig("", file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.PollingInterval())
}

func TestPollingInterval(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
		clamped bool
	}{
		{-5, 0, false},
		{0, 0, false},
		{1, 60 * time.Second, true},
		{59, 60 * time.Second, true},
		{60, 60 * time.Second, false},
		{120, 120 * time.Second, false},
	}
	for _, tt := range tests {
		got, clamped := PollingInterval(tt.seconds)
		assert.Equal(t, tt.want, got, "seconds=%d", tt.seconds)
		assert.Equal(t, tt.clamped, clamped, "seconds=%d", tt.seconds)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.SwitchBot.Token = "token"
		cfg.SwitchBot.Secret = "secret"
		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.MQTT.QOS = 3
	assert.ErrorContains(t, cfg.Validate(), "mqtt.qos")

	cfg = valid()
	cfg.MQTT.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "mqtt.port")

	cfg = valid()
	cfg.SwitchBot.BaseURL = "api.switch-bot.com/v1.1/"
	assert.ErrorContains(t, cfg.Validate(), "absolute http(s) URL")

	cfg = valid()
	cfg.SwitchBot.BaseURL = "https://api.switch-bot.com/v1.0/"
	assert.ErrorContains(t, cfg.Validate(), "signed requests")

	cfg = valid()
	cfg.SwitchBot.BaseURL = "https://api.switch-bot.com/v2/"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.SwitchBot.BaseURL = "http://127.0.0.1:9000/"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Logging.Level = "loud"
	assert.ErrorContains(t, cfg.Validate(), "logging.level")
}

func TestLoadEnvFile(t *testing.T) {
	const key = "SWITCHBOT_BRIDGE_TEST_ENVFILE"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0600))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv(key))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
