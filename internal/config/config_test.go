package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "snowflake_config.json")
	if err := os.WriteFile(configFile, []byte(content), 0600); err != nil {
		t.Fatalf("unable to write config file: %s", err)
	}
	return configFile
}

func TestGetConfigKeyPair(t *testing.T) {
	configFile := writeConfigFile(t, `{
		"account": "myacct",
		"user": "ingest_user",
		"role": "ingest_role",
		"database": "SENSORDB",
		"schema": "PUBLIC",
		"pipe": "THERMAL_PIPE",
		"private_key_file": "/etc/keys/rsa_key.pem"
	}`)

	cfg, err := GetConfig(configFile)
	assert.Equal(t, err, nil)

	assert.Equal(t, cfg.Account, "myacct")
	assert.Equal(t, cfg.AuthMethod, AuthMethodKeyPair)
	assert.Equal(t, cfg.PrivateKeyFile, "/etc/keys/rsa_key.pem")
	assert.Equal(t, cfg.ControlPlaneUrl, "https://myacct.snowflakecomputing.com")
	assert.Equal(t, cfg.TokenLifetime, 60*time.Minute)
	assert.Equal(t, cfg.TokenRefreshMargin, 5*time.Minute)
	assert.Equal(t, cfg.BatchSize, 10)
	assert.Equal(t, cfg.ChannelName, "thermal_channel")
}

func TestGetConfigPat(t *testing.T) {
	configFile := writeConfigFile(t, `{
		"account": "myacct",
		"user": "ingest_user",
		"database": "SENSORDB",
		"schema": "PUBLIC",
		"pipe": "THERMAL_PIPE",
		"pat_token": "issasecret"
	}`)

	cfg, err := GetConfig(configFile)
	assert.Equal(t, err, nil)

	assert.Equal(t, cfg.AuthMethod, AuthMethodPat)
	assert.Equal(t, cfg.PatToken, "issasecret")
	assert.Equal(t, cfg.Role, "PUBLIC")
}

func TestGetConfigValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name: "missing required keys",
			content: `{
				"account": "myacct",
				"pat_token": "issasecret"
			}`,
		},
		{
			name: "no auth method",
			content: `{
				"account": "myacct",
				"user": "ingest_user",
				"database": "SENSORDB",
				"schema": "PUBLIC",
				"pipe": "THERMAL_PIPE"
			}`,
		},
		{
			name: "both auth methods",
			content: `{
				"account": "myacct",
				"user": "ingest_user",
				"database": "SENSORDB",
				"schema": "PUBLIC",
				"pipe": "THERMAL_PIPE",
				"pat_token": "issasecret",
				"private_key_file": "/etc/keys/rsa_key.pem"
			}`,
		},
		{
			name: "key_pair method without key file",
			content: `{
				"account": "myacct",
				"user": "ingest_user",
				"database": "SENSORDB",
				"schema": "PUBLIC",
				"pipe": "THERMAL_PIPE",
				"auth_method": "key_pair"
			}`,
		},
		{
			name: "unknown auth method",
			content: `{
				"account": "myacct",
				"user": "ingest_user",
				"database": "SENSORDB",
				"schema": "PUBLIC",
				"pipe": "THERMAL_PIPE",
				"auth_method": "magic"
			}`,
		},
	}

	for _, c := range cases {
		configFile := writeConfigFile(t, c.content)

		_, err := GetConfig(configFile)

		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("%s: expected *ValidationError, got %v", c.name, err)
		}
	}
}

func TestGetConfigMissingFile(t *testing.T) {
	_, err := GetConfig("/does/not/exist.json")

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestConfigStringOmitsSecrets(t *testing.T) {
	configFile := writeConfigFile(t, `{
		"account": "myacct",
		"user": "ingest_user",
		"database": "SENSORDB",
		"schema": "PUBLIC",
		"pipe": "THERMAL_PIPE",
		"pat_token": "issasecret"
	}`)

	cfg, err := GetConfig(configFile)
	assert.Equal(t, err, nil)

	dump := cfg.String()
	if strings.Contains(dump, "issasecret") {
		t.Fatalf("config dump leaks the pat token: %s", dump)
	}
}
