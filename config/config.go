package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"

	// Engagement defaults applied when the config file and environment
	// leave the values unset.
	DefaultLeaseDurationSecs     = 120
	DefaultTimeoutSecs           = 300
	DefaultSweepIntervalMs       = 30000
	DefaultSessionTTLSecs        = 900
	DefaultSessionSyncIntervalMs = 300000
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"ALBRU_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"ALBRU_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"ALBRU_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"ALBRU_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"ALBRU_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"ALBRU_REDIS_SKIP_TLS_VERIFY"`
}

// EngagementConfig carries the tunables of the engagement lifecycle:
// lease duration, inactivity threshold, sweep cadence and session TTL.
type EngagementConfig struct {
	LeaseDurationSecs     int    `json:"lease_duration_secs" envconfig:"ALBRU_LEASE_DURATION_SECS"`
	TimeoutSecs           int    `json:"timeout_secs" envconfig:"ALBRU_TIMEOUT_SECS"`
	SweepIntervalMs       int    `json:"sweep_interval_ms" envconfig:"ALBRU_SWEEP_INTERVAL_MS"`
	SessionTTLSecs        int    `json:"session_ttl_secs" envconfig:"ALBRU_SESSION_TTL_SECS"`
	SessionSyncIntervalMs int    `json:"session_sync_interval_ms" envconfig:"ALBRU_SESSION_SYNC_INTERVAL_MS"`
	DownstreamCategory    string `json:"downstream_category" envconfig:"ALBRU_DOWNSTREAM_CATEGORY"`
}

type Notification struct {
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"ALBRU_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Engagement   EngagementConfig `json:"engagement"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("albru", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called albru.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Albru Engagement"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Engagement.applyDefaults()

	return nil
}

func (e *EngagementConfig) applyDefaults() {
	if e.LeaseDurationSecs <= 0 {
		e.LeaseDurationSecs = DefaultLeaseDurationSecs
	}
	if e.TimeoutSecs <= 0 {
		e.TimeoutSecs = DefaultTimeoutSecs
	}
	if e.SweepIntervalMs <= 0 {
		e.SweepIntervalMs = DefaultSweepIntervalMs
	}
	if e.SessionTTLSecs <= 0 {
		e.SessionTTLSecs = DefaultSessionTTLSecs
	}
	if e.SessionSyncIntervalMs <= 0 {
		e.SessionSyncIntervalMs = DefaultSessionSyncIntervalMs
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Engagement.applyDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
