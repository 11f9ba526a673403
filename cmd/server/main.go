// Command server runs the earn-out settlement compute service.
//
// The service accepts batches of financial documents over HTTP, normalizes
// them into signed fixed-point KPI contributions, aggregates the earn-out
// KPI, and returns a signed attestation binding the result to the exact
// documents submitted.
//
// # Identity
//
// The signing identity is fixed at startup: an explicit hex key wins, then a
// sealed master secret (EARNOUT_MASTER_SECRET, optionally via .env), then a
// freshly generated key. The public half is served from GET /identity,
// wrapped in a signed envelope together with a TEE quote when a provider is
// configured.
//
// # Usage
//
//	go run ./cmd/server --listen-addr=:8080
//	go run ./cmd/server --config=config.yaml --metrics-addr=:9090
//	go run ./cmd/server --tdx --measurements-url=https://measurements.example.com/earnout.json
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/settleline/earnout/api/httpserver"
	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/cmd/common"
	earnout "github.com/settleline/earnout/common"
	"github.com/settleline/earnout/metrics"
	"github.com/settleline/earnout/services"
)

const (
	httpReadTimeout  = 15 * time.Second
	httpWriteTimeout = 15 * time.Second
)

func main() {
	var (
		configPath      = flag.String("config", "", "Path to YAML config file")
		listenAddr      = flag.String("listen-addr", ":8080", "HTTP listen address for the API")
		metricsAddr     = flag.String("metrics-addr", "", "listen address for Prometheus metrics (disabled when empty)")
		logJSON         = flag.Bool("log-json", false, "log in JSON format")
		logDebug        = flag.Bool("log-debug", false, "log debug messages")
		enablePprof     = flag.Bool("pprof", false, "enable pprof debug endpoints")
		enableCORS      = flag.Bool("cors", false, "enable permissive CORS headers")
		useTDX          = flag.Bool("tdx", false, "use real TDX attestation")
		remoteTDXURL    = flag.String("tdx-url", "", "remote TDX attestation service URL")
		measurementsURL = flag.String("measurements-url", "", "URL for allowed measurements (identity self-check)")
		signingKeyHex   = flag.String("signing-key", "", "Ed25519 signing key (hex, generates if empty)")
		postgresDSN     = flag.String("postgres-dsn", "", "postgres DSN for the audit store (in-memory when empty)")
		kafkaBrokers    = flag.String("kafka-brokers", "", "comma-separated Kafka brokers for attestation events")
	)
	flag.Parse()

	isFlagSet := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	common.LoadDotEnv()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file only when explicitly set.
	if isFlagSet("listen-addr") {
		cfg.ListenAddr = *listenAddr
	}
	if isFlagSet("metrics-addr") {
		cfg.MetricsAddr = *metricsAddr
	}
	if isFlagSet("log-json") {
		cfg.LogJSON = *logJSON
	}
	if isFlagSet("log-debug") {
		cfg.LogDebug = *logDebug
	}
	if isFlagSet("pprof") {
		cfg.EnablePprof = *enablePprof
	}
	if isFlagSet("cors") {
		cfg.EnableCORS = *enableCORS
	}
	if isFlagSet("tdx") {
		cfg.Attestation.UseTDX = *useTDX
	}
	if *remoteTDXURL != "" {
		cfg.Attestation.TDXRemoteURL = *remoteTDXURL
	}
	if *measurementsURL != "" {
		cfg.Attestation.MeasurementsURL = *measurementsURL
	}
	if *signingKeyHex != "" {
		cfg.Keys.SigningKey = *signingKeyHex
	}
	if *postgresDSN != "" {
		cfg.Store.DSN = *postgresDSN
	}
	if *kafkaBrokers != "" {
		cfg.Events.KafkaBrokers = strings.Split(*kafkaBrokers, ",")
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(cfg *common.Config) error {
	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug)

	identity, err := common.NewSigningIdentity(cfg.Keys)
	if err != nil {
		return fmt.Errorf("signing identity: %w", err)
	}
	log.Info("Starting settlement server",
		"version", earnout.Version,
		"publicKey", identity.PublicKey().String(),
	)

	store, err := common.NewAttestationStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("audit store: %w", err)
	}
	defer store.Close()

	events := common.NewEventPublisher(cfg.Events, log)
	defer events.Close()

	collectors := metrics.NewCollectors(earnout.PackageName)

	svc := services.NewComputeService(&services.ComputeServiceConfig{
		Attestor: attest.NewSoftwareAttestor(identity),
		Store:    store,
		Events:   events,
		Metrics:  collectors,
		Log:      log,
	})

	provider := common.NewAttestationProvider(cfg.Attestation)
	identitySvc, err := services.NewIdentityService(identity, provider)
	if err != nil {
		return fmt.Errorf("identity service: %w", err)
	}
	log.Info("Attestation provider ready", "type", provider.AttestationType())

	// When an allowed-measurements URL is configured, check our own identity
	// against it so a misdeployed build shows up in the logs, not in a
	// counterparty's verifier.
	if src := common.NewMeasurementSource(cfg.Attestation.MeasurementsURL); src != nil {
		if _, err := services.VerifyIdentityReport(src, provider, identitySvc.SignedReport()); err != nil {
			log.Warn("Identity self-check against allowed measurements failed", "err", err)
		} else {
			log.Info("Identity self-check passed")
		}
	}

	handler := services.NewHandler(svc, identitySvc, store, log)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		EnableCORS:               cfg.EnableCORS,
		Log:                      log,
		DrainDuration:            time.Duration(cfg.DrainSeconds) * time.Second,
		GracefulShutdownDuration: time.Duration(cfg.GracefulShutdownSeconds) * time.Second,
		ReadTimeout:              httpReadTimeout,
		WriteTimeout:             httpWriteTimeout,
	}, handler)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	srv.RunInBackground()
	<-exit

	log.Info("Shutting down")
	srv.Shutdown()
	return nil
}
