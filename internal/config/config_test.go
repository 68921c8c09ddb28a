package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o644))
	return dir
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("UUID", "node-1")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "node-1", cfg.Node.UUID)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, RemoteMongo, cfg.Remote.Kind)
	assert.Equal(t, "sensor_readings", cfg.Remote.ReadingsCollection)
	assert.Equal(t, "alerts", cfg.Remote.AlertsCollection)
	assert.Equal(t, 30*time.Second, cfg.Sync.Period)
	assert.Equal(t, 7*24*time.Hour, cfg.Sync.Retention)
	assert.Equal(t, 10*time.Second, cfg.Serial.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "conf/node-1/code", cfg.MQTTTopic())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	t.Setenv("UUID", "  node-2 ")
	t.Setenv("MONGO_URI", "mongodb://remote:27017")
	t.Setenv("DB_DATABASE", "farm")

	dir := writeConfig(t, `
port: "9090"
sync:
  period: 5s
  retention: 48h
remote:
  kind: MONGO
thresholds:
  - sensor_code: tmp/1
    min: 17
    max: 26
  - sensor_code: tds/1
units:
  tmp: "°C"
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "node-2", cfg.Node.UUID)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "mongodb://remote:27017", cfg.Remote.MongoURI)
	assert.Equal(t, "farm", cfg.Remote.Database)
	assert.Equal(t, RemoteMongo, cfg.Remote.Kind)
	assert.Equal(t, 5*time.Second, cfg.Sync.Period)
	assert.Equal(t, 48*time.Hour, cfg.Sync.Retention)
	assert.Equal(t, "°C", cfg.Units["tmp"])

	table := cfg.ThresholdTable()
	require.Len(t, table, 2)
	require.NotNil(t, table["tmp/1"].Min)
	assert.Equal(t, 17.0, *table["tmp/1"].Min)
	assert.Equal(t, 26.0, *table["tmp/1"].Max)
	assert.Nil(t, table["tds/1"].Min)
	assert.Nil(t, table["tds/1"].Max)
}

func TestLoad_MissingUUIDIsFatal(t *testing.T) {
	t.Setenv("UUID", "")

	_, err := Load(t.TempDir())
	require.ErrorIs(t, err, errMissingUUID)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Setenv("UUID", "node-1")
	dir := writeConfig(t, "sync: [unterminated")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	valid := func() *Config {
		c := &Config{}
		c.Node.UUID = "n"
		c.Remote.Kind = RemoteMongo
		c.Serial.ReadTimeout = time.Second
		c.Registry.Timeout = time.Second
		c.Registry.RefreshPeriod = time.Hour
		c.Registry.ConfigRulesPoll = time.Second
		c.Remote.Timeout = time.Second
		c.Sync.Period = time.Second
		c.Sync.Retention = time.Hour
		c.Actuators.Period = time.Second
		c.Status.PushPeriod = time.Second
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown remote", mutate: func(c *Config) { c.Remote.Kind = "kafka" }, wantErr: true},
		{name: "http without url", mutate: func(c *Config) { c.Remote.Kind = RemoteHTTP }, wantErr: true},
		{name: "http with url", mutate: func(c *Config) {
			c.Remote.Kind = RemoteHTTP
			c.Remote.HTTPURL = "http://x/api/sensor-data/batch"
		}},
		{name: "zero sync period", mutate: func(c *Config) { c.Sync.Period = 0 }, wantErr: true},
		{name: "negative retention", mutate: func(c *Config) { c.Sync.Retention = -time.Hour }, wantErr: true},
		{name: "threshold without code", mutate: func(c *Config) {
			c.Thresholds = []Threshold{{Min: f(1)}}
		}, wantErr: true},
		{name: "duplicate threshold", mutate: func(c *Config) {
			c.Thresholds = []Threshold{{SensorCode: "tmp/1"}, {SensorCode: "tmp/1"}}
		}, wantErr: true},
		{name: "min above max", mutate: func(c *Config) {
			c.Thresholds = []Threshold{{SensorCode: "tmp/1", Min: f(30), Max: f(20)}}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
