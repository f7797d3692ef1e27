// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultSecretKey = "REPLACE_WITH_SECURE_SECRET"

type Config struct {
	APIPort        string `mapstructure:"API_PORT"`
	GinMode        string `mapstructure:"GIN_MODE"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	TLSEnable      bool   `mapstructure:"TLS_ENABLE"`
	TLSCertFile    string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string `mapstructure:"TLS_KEY_FILE"`

	// DevMode starts an in-process Redis, the mock directory and an embedded worker.
	DevMode        bool   `mapstructure:"DEV_MODE"`
	EmbeddedWorker bool   `mapstructure:"EMBEDDED_WORKER"`
	SecretKey      string `mapstructure:"SECRET_KEY"`

	// --- Queue / result store ---
	RedisURL             string `mapstructure:"REDIS_URL"`
	BrokerType           string `mapstructure:"BROKER_TYPE"` // redis, rabbitmq, kafka
	BrokerURL            string `mapstructure:"BROKER_URL"`
	KafkaBrokers         string `mapstructure:"KAFKA_BROKERS"`
	TaskQueue            string `mapstructure:"TASK_QUEUE"`
	ResultExpiresSeconds int    `mapstructure:"RESULT_EXPIRES_SECONDS"`
	WorkerConcurrency    int    `mapstructure:"WORKER_CONCURRENCY"`
	TaskTimeLimitSeconds int    `mapstructure:"TASK_TIME_LIMIT_SECONDS"`
	WorkerMetricsPort    string `mapstructure:"WORKER_METRICS_PORT"`

	// --- Directory ---
	AuthBackend            string `mapstructure:"AUTH_BACKEND"` // ldap, pam, mock
	LDAPHost               string `mapstructure:"LDAP_HOST"`
	LDAPPort               int    `mapstructure:"LDAP_PORT"`
	LDAPBaseDN             string `mapstructure:"LDAP_BASE_DN"`
	LDAPUsername           string `mapstructure:"LDAP_USERNAME"`
	LDAPPassword           string `mapstructure:"LDAP_PASSWORD"`
	LDAPInsecureSkipVerify bool   `mapstructure:"LDAP_INSECURE_SKIP_VERIFY"`
	LDAPRoles              string `mapstructure:"LDAP_ROLES"` // JSON: {"role": ["CN=group-prefix", ...]}
	RolesFile              string `mapstructure:"ROLES_FILE"` // YAML alternative to LDAP_ROLES
	MockUsersFile          string `mapstructure:"MOCK_USERS_FILE"`
	PAMService             string `mapstructure:"PAM_SERVICE"`

	// --- Sessions / credentials ---
	SessionTimeoutSeconds int    `mapstructure:"SESSION_TIMEOUT_SECONDS"`
	SessionCookieName     string `mapstructure:"SESSION_COOKIE_NAME"`
	SessionCookieSecure   bool   `mapstructure:"SESSION_COOKIE_SECURE"`
	CredentialTTLSeconds  int    `mapstructure:"CREDENTIAL_TTL_SECONDS"`

	// --- Devices ---
	SSHTimeoutSeconds int    `mapstructure:"SSH_TIMEOUT_SECONDS"`
	SSHKnownHosts     string `mapstructure:"SSH_KNOWN_HOSTS"`
	DeviceRoles       string `mapstructure:"DEVICE_ROLES"` // comma-separated; empty allows any authenticated user

	// Roles is the parsed role mapping (role name -> directory group prefixes).
	Roles map[string][]string `mapstructure:"-"`
}

var AppConfig Config

// LoadConfig reads .env (if present) and the process environment into AppConfig.
func LoadConfig() error {
	cfg, err := Load(".env")
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Load builds a Config from envFile and the environment. A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	// --- Set Defaults ---
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("TLS_ENABLE", false)
	v.SetDefault("TLS_CERT_FILE", "")
	v.SetDefault("TLS_KEY_FILE", "")
	v.SetDefault("DEV_MODE", false)
	v.SetDefault("EMBEDDED_WORKER", false)
	v.SetDefault("SECRET_KEY", defaultSecretKey)

	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("BROKER_TYPE", "redis")
	v.SetDefault("BROKER_URL", "")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("TASK_QUEUE", "portal.tasks")
	v.SetDefault("RESULT_EXPIRES_SECONDS", 300)
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("TASK_TIME_LIMIT_SECONDS", 120)
	v.SetDefault("WORKER_METRICS_PORT", "")

	v.SetDefault("AUTH_BACKEND", "ldap")
	v.SetDefault("LDAP_HOST", "")
	v.SetDefault("LDAP_PORT", 636)
	v.SetDefault("LDAP_BASE_DN", "")
	v.SetDefault("LDAP_USERNAME", "")
	v.SetDefault("LDAP_PASSWORD", "")
	v.SetDefault("LDAP_INSECURE_SKIP_VERIFY", false)
	v.SetDefault("LDAP_ROLES", "")
	v.SetDefault("ROLES_FILE", "")
	v.SetDefault("MOCK_USERS_FILE", "")
	v.SetDefault("PAM_SERVICE", "login")

	v.SetDefault("SESSION_TIMEOUT_SECONDS", 3600)
	v.SetDefault("SESSION_COOKIE_NAME", "portal_session")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("CREDENTIAL_TTL_SECONDS", 300)

	v.SetDefault("SSH_TIMEOUT_SECONDS", 15)
	v.SetDefault("SSH_KNOWN_HOSTS", "")
	v.SetDefault("DEVICE_ROLES", "")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	roles, err := loadRoles(cfg.LDAPRoles, cfg.RolesFile)
	if err != nil {
		return nil, err
	}
	cfg.Roles = roles

	if cfg.DevMode {
		cfg.EmbeddedWorker = true
		if cfg.AuthBackend == "ldap" {
			cfg.AuthBackend = "mock"
		}
	}

	return cfg, nil
}

// loadRoles parses the role mapping, preferring the inline JSON over the YAML file.
func loadRoles(inline, file string) (map[string][]string, error) {
	roles := map[string][]string{}
	switch {
	case strings.TrimSpace(inline) != "":
		if err := json.Unmarshal([]byte(inline), &roles); err != nil {
			return nil, fmt.Errorf("invalid LDAP_ROLES: %w", err)
		}
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read roles file %q: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &roles); err != nil {
			return nil, fmt.Errorf("failed to parse roles file %q: %w", file, err)
		}
	}
	return roles, nil
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

func (c *Config) ResultExpires() time.Duration {
	return time.Duration(c.ResultExpiresSeconds) * time.Second
}

func (c *Config) TaskTimeLimit() time.Duration {
	return time.Duration(c.TaskTimeLimitSeconds) * time.Second
}

func (c *Config) CredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLSeconds) * time.Second
}

func (c *Config) SSHTimeout() time.Duration {
	return time.Duration(c.SSHTimeoutSeconds) * time.Second
}

// DeviceRoleList returns DEVICE_ROLES split on commas with blanks dropped.
func (c *Config) DeviceRoleList() []string {
	return splitList(c.DeviceRoles)
}

// KafkaBrokerList returns KAFKA_BROKERS split on commas with blanks dropped.
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// UsesDefaultSecret reports whether SECRET_KEY was left at its placeholder value.
func (c *Config) UsesDefaultSecret() bool {
	return c.SecretKey == defaultSecretKey
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
