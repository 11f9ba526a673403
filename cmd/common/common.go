// Package common provides configuration and factories for the settlement
// service binaries.
//
// This package contains the YAML configuration model and the helpers that
// turn configuration into wired collaborators:
//
//   - Configuration loading with defaults, YAML files, and .env secrets
//   - Signing identity construction (explicit key, derived, or generated)
//   - TEE provider and measurement source factory functions
//   - Audit store and event publisher factory functions
package common

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/crypto"
	"github.com/settleline/earnout/services"
	"github.com/settleline/earnout/tdx"
)

const (
	// defaultMasterSecretEnv names the environment variable checked for a
	// sealed master secret when the config does not name one.
	defaultMasterSecretEnv = "EARNOUT_MASTER_SECRET"

	// postgresDSNEnv is the environment fallback for the audit store DSN, so
	// credentials stay out of config files.
	postgresDSNEnv = "EARNOUT_POSTGRES_DSN"

	// signingKeyDerivationInfo domain-separates the attestation signing key
	// from any other key derived from the same master secret.
	signingKeyDerivationInfo = "attestation-signing-v1"

	defaultKafkaTopic = "earnout.attestations"
)

// Config holds the full configuration for the settlement server.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogJSON     bool   `yaml:"log_json"`
	LogDebug    bool   `yaml:"log_debug"`
	EnablePprof bool   `yaml:"enable_pprof"`
	EnableCORS  bool   `yaml:"enable_cors"`

	DrainSeconds            int `yaml:"drain_seconds"`
	GracefulShutdownSeconds int `yaml:"graceful_shutdown_seconds"`

	Keys        KeysConfig        `yaml:"keys"`
	Attestation AttestationConfig `yaml:"attestation"`
	Store       StoreConfig       `yaml:"store"`
	Events      EventsConfig      `yaml:"events"`
}

// KeysConfig controls how the process signing identity is obtained.
type KeysConfig struct {
	// SigningKey is a hex-encoded Ed25519 private key. Takes precedence over
	// derivation when set.
	SigningKey string `yaml:"signing_key"`
	// MasterSecretEnv names the environment variable holding a hex master
	// secret for deterministic key derivation. Defaults to
	// EARNOUT_MASTER_SECRET.
	MasterSecretEnv string `yaml:"master_secret_env"`
}

// AttestationConfig selects the TEE quote provider.
type AttestationConfig struct {
	UseTDX          bool   `yaml:"use_tdx"`
	TDXRemoteURL    string `yaml:"tdx_remote_url"`
	MeasurementsURL string `yaml:"measurements_url"`
}

// StoreConfig selects the attestation audit store.
type StoreConfig struct {
	// DSN is the postgres connection string. Falls back to the
	// EARNOUT_POSTGRES_DSN environment variable; uses the in-memory store
	// when both are empty.
	DSN string `yaml:"dsn"`
}

// EventsConfig selects the attestation event publisher.
type EventsConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// DefaultConfig returns a configuration suitable for local development:
// in-memory store, dummy attestation, no metrics listener.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:              ":8080",
		DrainSeconds:            5,
		GracefulShutdownSeconds: 10,
		Events:                  EventsConfig{KafkaTopic: defaultKafkaTopic},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory when present, so
// secrets (master secret, postgres DSN) stay out of config files. A missing
// file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// NewLogger builds the process logger writing to stderr.
func NewLogger(json, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// NewSigningIdentity builds the process signing identity from configuration:
// an explicit hex key wins, then a sealed master secret from the environment,
// then a freshly generated key.
func NewSigningIdentity(cfg KeysConfig) (*attest.SigningIdentity, error) {
	if cfg.SigningKey != "" {
		keyBytes, err := hex.DecodeString(cfg.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key hex: %w", err)
		}
		return attest.NewSigningIdentity(crypto.NewPrivateKeyFromBytes(keyBytes))
	}

	envName := cfg.MasterSecretEnv
	if envName == "" {
		envName = defaultMasterSecretEnv
	}
	if secretHex := os.Getenv(envName); secretHex != "" {
		secret, err := hex.DecodeString(secretHex)
		if err != nil {
			return nil, fmt.Errorf("invalid master secret in %s: %w", envName, err)
		}
		privateKey, err := crypto.DeriveSigningKey(secret, signingKeyDerivationInfo)
		if err != nil {
			return nil, fmt.Errorf("deriving signing key: %w", err)
		}
		return attest.NewSigningIdentity(privateKey)
	}

	return attest.GenerateSigningIdentity()
}

// NewAttestationProvider creates a TEE provider based on configuration.
// Returns TDXProvider or RemoteDCAPProvider when use_tdx is set, otherwise
// DummyProvider for development.
func NewAttestationProvider(cfg AttestationConfig) tdx.Provider {
	if cfg.UseTDX {
		if cfg.TDXRemoteURL != "" {
			return &tdx.RemoteDCAPProvider{URL: cfg.TDXRemoteURL, Timeout: 30 * time.Second}
		}
		return &tdx.TDXProvider{}
	}
	return &tdx.DummyProvider{}
}

// NewMeasurementSource creates a measurement source from a URL.
// Returns nil if measurementsURL is empty, indicating no measurement
// verification should be performed.
func NewMeasurementSource(measurementsURL string) services.MeasurementSource {
	if measurementsURL != "" {
		return services.NewRemoteMeasurementSource(measurementsURL)
	}
	return nil
}

// NewAttestationStore creates the audit store: postgres when a DSN is
// configured, in-memory otherwise.
func NewAttestationStore(cfg StoreConfig) (services.AttestationStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = os.Getenv(postgresDSNEnv)
	}
	if dsn == "" {
		return services.NewInMemoryStore(), nil
	}
	return services.NewPostgresStore(dsn)
}

// NewEventPublisher creates the attestation event publisher: Kafka when
// brokers are configured, otherwise a no-op.
func NewEventPublisher(cfg EventsConfig, log *slog.Logger) services.EventPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return &services.NoopPublisher{}
	}
	topic := cfg.KafkaTopic
	if topic == "" {
		topic = defaultKafkaTopic
	}
	return services.NewKafkaPublisher(cfg.KafkaBrokers, topic, log)
}
