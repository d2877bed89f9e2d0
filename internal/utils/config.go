package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/switchbot-bridge/internal/constants"
	"github.com/benmeehan/switchbot-bridge/pkg/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config represents the structure of the configuration file.
// Every field can be overridden by the environment variable noted next to it.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT_BROKER: broker host
		Port          int    `yaml:"port"`           // MQTT_PORT: broker port
		Username      string `yaml:"username"`       // MQTT_USERNAME
		Password      string `yaml:"password"`       // MQTT_PASSWORD
		ClientID      string `yaml:"client_id"`      // MQTT_CLIENT_ID
		TLS           bool   `yaml:"tls"`            // MQTT_TLS: connect with ssl://
		CACertificate string `yaml:"ca_certificate"` // MQTT_CA_CERTIFICATE: optional CA bundle path
		QOS           int    `yaml:"qos"`            // MQTT_QOS: QoS for subscriptions and publishes
	} `yaml:"mqtt"`

	Topics struct {
		SmartLockBase string `yaml:"smartlock_base"` // MQTT_SMARTLOCK_BASE_TOPIC, empty disables the family
		GenericBase   string `yaml:"generic_base"`   // MQTT_GENERIC_BASE_TOPIC, empty disables the family
	} `yaml:"topics"`

	SwitchBot struct {
		Token               string   `yaml:"token"`                 // SWITCHBOT_TOKEN
		Secret              string   `yaml:"secret"`                // SWITCHBOT_SECRET
		BaseURL             string   `yaml:"base_url"`              // API_BASEURL
		SmartLockDeviceType string   `yaml:"smartlock_device_type"` // SWITCHBOT_DEVICE_TYPE_SMARTLOCK
		ValidDeviceIDs      []string `yaml:"valid_device_ids"`      // SWITCHBOT_VALID_DEVICE_ID (JSON array)
		ValidCommands       []string `yaml:"valid_commands"`        // SWITCHBOT_SMARTLOCK_VALID_COMMAND (JSON array)
	} `yaml:"switchbot"`

	Services struct {
		Router struct {
			Enabled   bool `yaml:"enabled"`    // Enable/disable the command router
			Workers   int  `yaml:"workers"`    // Concurrent vendor dispatches
			QueueSize int  `yaml:"queue_size"` // Buffered messages waiting for a worker
		} `yaml:"router"`

		Webhook struct {
			Enabled    bool   `yaml:"enabled"`     // Enable/disable the webhook listener
			ListenAddr string `yaml:"listen_addr"` // HTTP_PORT becomes ":<port>"
			Path       string `yaml:"path"`        // Route receiving vendor events
		} `yaml:"webhook"`

		Poller struct {
			IntervalSec int `yaml:"interval_sec"` // SWITCHBOT_POLLING_INTERVAL_SEC, <=0 disables polling
		} `yaml:"poller"`
	} `yaml:"services"`

	Middlewares struct {
		Logging struct {
			Enabled bool `yaml:"enabled"` // Debug-log every publish and subscribe
		} `yaml:"logging"`
		Metrics struct {
			Enabled bool `yaml:"enabled"` // Count publish outcomes
		} `yaml:"metrics"`
	} `yaml:"middlewares"`

	Logging struct {
		Level  string `yaml:"level"`  // LOG_LEVEL: debug, info, warn, error
		Format string `yaml:"format"` // LOG_FORMAT: json or console
	} `yaml:"logging"`
}

// DefaultConfig returns a Config populated with the bridge defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.MQTT.Broker = constants.DefaultMQTTBroker
	cfg.MQTT.Port = constants.DefaultMQTTPort
	cfg.MQTT.ClientID = constants.DefaultMQTTClientID

	cfg.Topics.SmartLockBase = constants.DefaultSmartLockBaseTopic
	cfg.Topics.GenericBase = constants.DefaultGenericBaseTopic

	cfg.SwitchBot.BaseURL = constants.DefaultAPIBaseURL
	cfg.SwitchBot.SmartLockDeviceType = constants.DefaultSmartLockDeviceType

	cfg.Services.Router.Enabled = true
	cfg.Services.Router.Workers = constants.DefaultRouterWorkers
	cfg.Services.Router.QueueSize = constants.DefaultRouterQueueSize
	cfg.Services.Webhook.Enabled = true
	cfg.Services.Webhook.ListenAddr = constants.DefaultWebhookListenAddr
	cfg.Services.Webhook.Path = constants.DefaultWebhookPath

	cfg.Middlewares.Logging.Enabled = true
	cfg.Middlewares.Metrics.Enabled = true

	cfg.Logging.Level = constants.DefaultLogLevel
	cfg.Logging.Format = constants.DefaultLogFormat
	return cfg
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process environment.
// Variables already present in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig builds the configuration from defaults, the optional YAML file and the environment.
// It returns a pointer to the Config struct and an error if loading or validation fails.
func LoadConfig(filename string, fileClient file.FileOperations, logger zerolog.Logger) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		exists, err := fileClient.IsFileExists(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file %s: %w", filename, err)
		}
		if exists {
			if err := fileClient.ReadYamlFile(filename, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
			}
		} else {
			logger.Debug().Str("file", filename).Msg("Config file not found, using defaults and environment")
		}
	}

	if err := applyEnvOverrides(config, logger); err != nil {
		return nil, err
	}

	config.normalize()

	if seconds := config.Services.Poller.IntervalSec; seconds > 0 {
		if interval, clamped := PollingInterval(seconds); clamped {
			logger.Warn().
				Int("configured_sec", seconds).
				Dur("applied", interval).
				Msg("Polling interval below minimum, clamping")
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides overlays environment variables on top of file values.
// Empty variables are treated as unset.
func applyEnvOverrides(cfg *Config, logger zerolog.Logger) error {
	v := viper.New()
	v.AutomaticEnv()

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	setString("mqtt_broker", &cfg.MQTT.Broker)
	setString("mqtt_username", &cfg.MQTT.Username)
	setString("mqtt_password", &cfg.MQTT.Password)
	setString("mqtt_client_id", &cfg.MQTT.ClientID)
	setString("mqtt_ca_certificate", &cfg.MQTT.CACertificate)
	setString("mqtt_smartlock_base_topic", &cfg.Topics.SmartLockBase)
	setString("mqtt_generic_base_topic", &cfg.Topics.GenericBase)
	setString("switchbot_token", &cfg.SwitchBot.Token)
	setString("switchbot_secret", &cfg.SwitchBot.Secret)
	setString("api_baseurl", &cfg.SwitchBot.BaseURL)
	setString("switchbot_device_type_smartlock", &cfg.SwitchBot.SmartLockDeviceType)
	setString("log_level", &cfg.Logging.Level)
	setString("log_format", &cfg.Logging.Format)

	var errs []string

	if v.IsSet("mqtt_port") {
		port, err := strconv.Atoi(strings.TrimSpace(v.GetString("mqtt_port")))
		if err != nil {
			errs = append(errs, fmt.Sprintf("MQTT_PORT must be an integer, got %q", v.GetString("mqtt_port")))
		} else {
			cfg.MQTT.Port = port
		}
	}
	if v.IsSet("mqtt_qos") {
		qos, err := strconv.Atoi(strings.TrimSpace(v.GetString("mqtt_qos")))
		if err != nil {
			errs = append(errs, fmt.Sprintf("MQTT_QOS must be an integer, got %q", v.GetString("mqtt_qos")))
		} else {
			cfg.MQTT.QOS = qos
		}
	}
	if v.IsSet("mqtt_tls") {
		cfg.MQTT.TLS = v.GetBool("mqtt_tls")
	}
	if v.IsSet("http_port") {
		cfg.Services.Webhook.ListenAddr = ":" + strings.TrimSpace(v.GetString("http_port"))
	}

	if v.IsSet("switchbot_valid_device_id") {
		ids, err := parseJSONList(v.GetString("switchbot_valid_device_id"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("SWITCHBOT_VALID_DEVICE_ID: %v", err))
		} else {
			cfg.SwitchBot.ValidDeviceIDs = ids
		}
	}
	if v.IsSet("switchbot_smartlock_valid_command") {
		cmds, err := parseJSONList(v.GetString("switchbot_smartlock_valid_command"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("SWITCHBOT_SMARTLOCK_VALID_COMMAND: %v", err))
		} else {
			cfg.SwitchBot.ValidCommands = cmds
		}
	}

	if v.IsSet("switchbot_polling_interval_sec") {
		raw := v.GetString("switchbot_polling_interval_sec")
		seconds, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			logger.Warn().Str("value", raw).Msg("Invalid value for SWITCHBOT_POLLING_INTERVAL_SEC, polling disabled")
			seconds = 0
		}
		cfg.Services.Poller.IntervalSec = seconds
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// parseJSONList decodes a JSON array of strings.
func parseJSONList(raw string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("must be a JSON array of strings: %w", err)
	}
	return list, nil
}

// normalize trims whitespace and ensures base topics and the base URL end with "/".
func (c *Config) normalize() {
	c.Topics.SmartLockBase = EnsureTrailingSlash(strings.TrimSpace(c.Topics.SmartLockBase))
	c.Topics.GenericBase = EnsureTrailingSlash(strings.TrimSpace(c.Topics.GenericBase))
	c.SwitchBot.BaseURL = EnsureTrailingSlash(strings.TrimSpace(c.SwitchBot.BaseURL))
	c.SwitchBot.Token = strings.TrimSpace(c.SwitchBot.Token)
	c.SwitchBot.Secret = strings.TrimSpace(c.SwitchBot.Secret)
	if c.Services.Webhook.Path != "" && !strings.HasPrefix(c.Services.Webhook.Path, "/") {
		c.Services.Webhook.Path = "/" + c.Services.Webhook.Path
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errs = append(errs, "mqtt.port must be between 1 and 65535")
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required")
	}

	if c.SwitchBot.Token == "" {
		errs = append(errs, "switchbot.token is required (set SWITCHBOT_TOKEN)")
	}
	if c.SwitchBot.Secret == "" {
		errs = append(errs, "switchbot.secret is required (set SWITCHBOT_SECRET)")
	}
	if err := validateBaseURL(c.SwitchBot.BaseURL); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Services.Router.Enabled && c.Services.Router.Workers < 1 {
		errs = append(errs, "services.router.workers must be at least 1")
	}
	if c.Services.Router.QueueSize < 0 {
		errs = append(errs, "services.router.queue_size must not be negative")
	}
	if c.Services.Webhook.Enabled {
		if c.Services.Webhook.ListenAddr == "" {
			errs = append(errs, "services.webhook.listen_addr is required")
		}
		if c.Services.Webhook.Path == "" {
			errs = append(errs, "services.webhook.path is required")
		}
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil || c.Logging.Level == "" {
		errs = append(errs, fmt.Sprintf("logging.level %q is not a valid level", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

var apiVersionSegment = regexp.MustCompile(`^v\d+(\.\d+){0,2}$`)

// validateBaseURL requires an absolute http(s) URL. When the path carries a version
// segment such as /v1.1/, the version must support signed requests.
func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("switchbot.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("switchbot.base_url %q must be an absolute http(s) URL", raw)
	}

	minVersion := semver.MustParse(constants.MinSignedAPIVersion)
	for _, segment := range strings.Split(u.Path, "/") {
		if !apiVersionSegment.MatchString(segment) {
			continue
		}
		version, err := semver.NewVersion(segment)
		if err != nil {
			continue
		}
		if version.LessThan(minVersion) {
			return fmt.Errorf("switchbot.base_url targets API %s, signed requests need v%s or later", segment, constants.MinSignedAPIVersion)
		}
	}
	return nil
}

// PollingInterval converts a configured interval in seconds into the applied interval.
// Values <= 0 disable polling and yield 0. Positive values below the minimum are
// raised to constants.MinPollingInterval and reported as clamped.
func PollingInterval(seconds int) (interval time.Duration, clamped bool) {
	if seconds <= 0 {
		return 0, false
	}
	interval = time.Duration(seconds) * time.Second
	if interval < constants.MinPollingInterval {
		return constants.MinPollingInterval, true
	}
	return interval, false
}

// PollingInterval returns the applied status polling interval, 0 when disabled.
func (c *Config) PollingInterval() time.Duration {
	interval, _ := PollingInterval(c.Services.Poller.IntervalSec)
	return interval
}
