package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tank_edge/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	RemoteMongo = "mongo"
	RemoteHTTP  = "http"
)

var (
	errMissingUUID   = errors.New("node uuid is required (set UUID in the environment or node.uuid in config)")
	errUnknownRemote = errors.New("remote.kind must be mongo or http")
)

type Config struct {
	Port string `mapstructure:"port"`

	Node struct {
		UUID string `mapstructure:"uuid"`
	} `mapstructure:"node"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Storage struct {
		Dir    string `mapstructure:"dir"`
		DBPath string `mapstructure:"db_path"`
	} `mapstructure:"storage"`

	Serial struct {
		Port        string        `mapstructure:"port"`
		BaudRate    int           `mapstructure:"baud_rate"`
		ReadTimeout time.Duration `mapstructure:"read_timeout"`
	} `mapstructure:"serial"`

	Registry struct {
		BaseURL         string        `mapstructure:"base_url"`
		Timeout         time.Duration `mapstructure:"timeout"`
		RefreshPeriod   time.Duration `mapstructure:"refresh_period"`
		ConfigRulesPoll time.Duration `mapstructure:"config_rules_poll"`
	} `mapstructure:"registry"`

	Remote struct {
		Kind               string        `mapstructure:"kind"`
		MongoURI           string        `mapstructure:"mongo_uri"`
		Database           string        `mapstructure:"database"`
		HTTPURL            string        `mapstructure:"http_url"`
		ReadingsCollection string        `mapstructure:"readings_collection"`
		AlertsCollection   string        `mapstructure:"alerts_collection"`
		Timeout            time.Duration `mapstructure:"timeout"`
	} `mapstructure:"remote"`

	Sync struct {
		Period    time.Duration `mapstructure:"period"`
		Retention time.Duration `mapstructure:"retention"`
	} `mapstructure:"sync"`

	MQTT struct {
		Broker        string `mapstructure:"broker"`
		ClientID      string `mapstructure:"client_id"`
		TopicTemplate string `mapstructure:"topic_template"`
	} `mapstructure:"mqtt"`

	Actuators struct {
		Period time.Duration `mapstructure:"period"`
	} `mapstructure:"actuators"`

	Status struct {
		PushPeriod time.Duration `mapstructure:"push_period"`
	} `mapstructure:"status"`

	Thresholds []Threshold        `mapstructure:"thresholds"`
	Units      map[string]string `mapstructure:"units"`
}

// Threshold is one alert rule as written in config.yml.
type Threshold struct {
	SensorCode string   `mapstructure:"sensor_code"`
	Min        *float64 `mapstructure:"min"`
	Max        *float64 `mapstructure:"max"`
}

// Load reads .env (if present), then <dir>/config.yml, then environment overrides.
// A missing config file is not an error; defaults apply.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// names the deployment .env files have always used
	_ = v.BindEnv("node.uuid", "UUID")
	_ = v.BindEnv("remote.mongo_uri", "MONGO_URI")
	_ = v.BindEnv("remote.database", "DB_DATABASE")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Node.UUID = strings.TrimSpace(cfg.Node.UUID)
	cfg.Remote.Kind = strings.ToLower(strings.TrimSpace(cfg.Remote.Kind))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.db_path", "data/journal.db")
	v.SetDefault("serial.port", "/dev/ttyACM0")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.read_timeout", 10*time.Second)
	v.SetDefault("registry.base_url", "http://localhost:3333")
	v.SetDefault("registry.timeout", 10*time.Second)
	v.SetDefault("registry.refresh_period", 24*time.Hour)
	v.SetDefault("registry.config_rules_poll", 20*time.Second)
	v.SetDefault("remote.kind", RemoteMongo)
	v.SetDefault("remote.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("remote.database", "tanks")
	v.SetDefault("remote.readings_collection", "sensor_readings")
	v.SetDefault("remote.alerts_collection", "alerts")
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("sync.period", 30*time.Second)
	v.SetDefault("sync.retention", 7*24*time.Hour)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic_template", "conf/{uuid}/code")
	v.SetDefault("actuators.period", 20*time.Second)
	v.SetDefault("status.push_period", 2*time.Second)
	v.SetDefault("units", map[string]string{})
}

// Validate rejects settings the node cannot start with.
func (c *Config) Validate() error {
	if c.Node.UUID == "" {
		return errMissingUUID
	}
	if c.Remote.Kind != RemoteMongo && c.Remote.Kind != RemoteHTTP {
		return fmt.Errorf("%w: got %q", errUnknownRemote, c.Remote.Kind)
	}
	if c.Remote.Kind == RemoteHTTP && c.Remote.HTTPURL == "" {
		return errors.New("remote.http_url is required when remote.kind is http")
	}

	periods := map[string]time.Duration{
		"serial.read_timeout":        c.Serial.ReadTimeout,
		"registry.timeout":           c.Registry.Timeout,
		"registry.refresh_period":    c.Registry.RefreshPeriod,
		"registry.config_rules_poll": c.Registry.ConfigRulesPoll,
		"remote.timeout":             c.Remote.Timeout,
		"sync.period":                c.Sync.Period,
		"sync.retention":             c.Sync.Retention,
		"actuators.period":           c.Actuators.Period,
		"status.push_period":         c.Status.PushPeriod,
	}
	for key, d := range periods {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}

	seen := make(map[string]struct{}, len(c.Thresholds))
	for i, t := range c.Thresholds {
		code := strings.TrimSpace(t.SensorCode)
		if code == "" {
			return fmt.Errorf("thresholds[%d]: sensor_code is required", i)
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("thresholds[%d]: duplicate sensor_code %q", i, code)
		}
		seen[code] = struct{}{}
		if t.Min != nil && t.Max != nil && *t.Min > *t.Max {
			return fmt.Errorf("thresholds[%d]: min %g greater than max %g", i, *t.Min, *t.Max)
		}
	}
	return nil
}

// ThresholdTable converts the configured rules into the alert engine's lookup table.
func (c *Config) ThresholdTable() models.ThresholdTable {
	table := make(models.ThresholdTable, len(c.Thresholds))
	for _, t := range c.Thresholds {
		code := strings.TrimSpace(t.SensorCode)
		table[code] = models.ThresholdRule{SensorCode: code, Min: t.Min, Max: t.Max}
	}
	return table
}

// MQTTTopic expands the topic template with this node's uuid.
func (c *Config) MQTTTopic() string {
	return strings.ReplaceAll(c.MQTT.TopicTemplate, "{uuid}", c.Node.UUID)
}
