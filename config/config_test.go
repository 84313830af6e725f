package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestValidateAndAddDefaults(t *testing.T) {
	// Test case with empty DataSource DNS
	cnf := Configuration{
		ProjectName: "",
		DataSource: DataSourceConfig{
			Dns: "",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}
	cnf = Configuration{
		ProjectName: "",
		DataSource: DataSourceConfig{
			Dns: "postgres://localhost:5432",
		},
		Redis: RedisConfig{
			Dns: "",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}
	// Test case with all required fields filled, expect no error
	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource: DataSourceConfig{
			Dns: "some-dns",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	// Test default port setting
	cnf.Server.Port = ""
	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}

	// Engagement defaults kick in when unset
	if cnf.Engagement.LeaseDurationSecs != DefaultLeaseDurationSecs {
		t.Errorf("Expected default lease duration %d, got %d", DefaultLeaseDurationSecs, cnf.Engagement.LeaseDurationSecs)
	}
	if cnf.Engagement.TimeoutSecs != DefaultTimeoutSecs {
		t.Errorf("Expected default timeout %d, got %d", DefaultTimeoutSecs, cnf.Engagement.TimeoutSecs)
	}
	if cnf.Engagement.SweepIntervalMs != DefaultSweepIntervalMs {
		t.Errorf("Expected default sweep interval %d, got %d", DefaultSweepIntervalMs, cnf.Engagement.SweepIntervalMs)
	}

	// Explicit values survive default application
	cnf.Engagement.TimeoutSecs = 600
	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Engagement.TimeoutSecs != 600 {
		t.Errorf("Expected timeout 600, got %d", cnf.Engagement.TimeoutSecs)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "albru.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name()) // Clean up after the test

	// Sample configuration to write to the temp file
	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource: DataSourceConfig{
			Dns: "temp-dns",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("Unable to close temporary file: %v", err)
	}

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile returned error: %v", err)
	}

	cnf, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if cnf.ProjectName != "Temp Project" {
		t.Errorf("Expected project name 'Temp Project', got %s", cnf.ProjectName)
	}
	if cnf.Engagement.SessionTTLSecs != DefaultSessionTTLSecs {
		t.Errorf("Expected default session TTL %d, got %d", DefaultSessionTTLSecs, cnf.Engagement.SessionTTLSecs)
	}
}
