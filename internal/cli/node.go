package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okdaichi/overlayd/internal/forwarding"
	"github.com/okdaichi/overlayd/internal/overlay"
	"github.com/okdaichi/overlayd/internal/transport"
	"github.com/okdaichi/overlayd/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

type nodeConfig struct {
	Hostname        string
	ListenAddr      string
	Algorithm       string // "dv", "ls", or "centralized-member"
	CentralHostname string
	Neighbors       map[string]int
	Peers           map[string]string
	RegistryTTL     time.Duration
	UpdateInterval  time.Duration
	Timeout         time.Duration
	DataDir         string
	TLS             *transport.TLSConfig
	Observability   observability.Config
}

// RunNode starts a single overlay node running one of the
// interchangeable routing algorithms (dv, ls, centralized-member).
func RunNode(args []string) error {
	fs := flag.NewFlagSet("node", flag.ExitOnError)
	configFile := fs.String("config", "config.node.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := loadNodeConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := observability.Setup(ctx, cfg.Observability); err != nil {
		return fmt.Errorf("failed to set up observability: %w", err)
	}
	defer observability.Shutdown(context.Background())

	registry := transport.NewRegistry(cfg.RegistryTTL)
	for hostname, addr := range cfg.Peers {
		registry.Register(hostname, addr)
	}
	registry.StartSweeper(ctx, cfg.RegistryTTL/3)

	httpTransport, err := transport.NewHTTPTransport(overlay.Hostname(cfg.Hostname), registry, cfg.TLS)
	if err != nil {
		return fmt.Errorf("failed to set up transport: %w", err)
	}

	dispatcher := transport.NewDispatcher()

	var store forwarding.Store
	if cfg.DataDir != "" {
		store = forwarding.NewFileStore(cfg.DataDir + "/routes.json")
		log.Printf("Persistence enabled: %s/routes.json", cfg.DataDir)
	}
	table := forwarding.NewTable(store)

	neighbors := overlay.NewNeighbors(httpTransport, dispatcher, overlay.NewMapNeighborStore())

	algCfg := overlay.Config{
		Hostname:       overlay.Hostname(cfg.Hostname),
		Transport:      httpTransport,
		RoutingModel:   table,
		Neighbors:      neighbors,
		Dispatcher:     dispatcher,
		UpdateInterval: cfg.UpdateInterval,
		Timeout:        cfg.Timeout,
	}

	var algorithm *overlay.Algorithm
	switch cfg.Algorithm {
	case "dv":
		v := overlay.NewDV(algCfg)
		algorithm = v.Algorithm
	case "ls":
		v := overlay.NewLS(algCfg)
		algorithm = v.Algorithm
	case "centralized-member":
		if cfg.CentralHostname == "" {
			return fmt.Errorf("centralized-member algorithm requires central_hostname")
		}
		v := overlay.NewCentralizedMember(algCfg, overlay.Hostname(cfg.CentralHostname))
		algorithm = v.Algorithm
	default:
		return fmt.Errorf("unknown algorithm %q (want dv, ls, or centralized-member)", cfg.Algorithm)
	}

	for hostname, cost := range cfg.Neighbors {
		neighbors.Update(overlay.Hostname(hostname), overlay.Cost(cost), nil, nil)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/message", transport.MessageHandlerFunc(dispatcher))
	mux.HandleFunc("/peers/", transport.PeerRegistrationHandlerFunc(registry))
	mux.HandleFunc("/table", forwarding.TableHandlerFunc(table))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	algorithm.Run()
	defer algorithm.Stop()

	observability.IncActiveNodes()
	defer observability.DecActiveNodes()

	serveNode(ctx, httpServer, cfg.ListenAddr, 10*time.Second)

	return nil
}

// serveNode starts httpServer and blocks until ctx is cancelled, then
// shuts it down with a bounded grace period. A standalone function so
// RunNode's control flow stays readable.
func serveNode(ctx context.Context, httpServer *http.Server, listenAddr string, shutdownTimeout time.Duration) {
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Overlay node started on %s", listenAddr)
	log.Println("  /message      - inbound wire messages")
	log.Println("  /peers/<host> - PUT/DELETE: peer address registration")
	log.Println("  /table        - GET: current routing table")
	log.Println("  /health       - health check")
	log.Println("  /metrics      - Prometheus metrics")

	<-ctx.Done()

	slog.Info("shutting down overlay node...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down http server: %v", err)
	}

	slog.Info("overlay node stopped")
}

func loadNodeConfig(filename string) (*nodeConfig, error) {
	type yamlConfig struct {
		Node struct {
			Hostname          string            `yaml:"hostname"`
			ListenAddr        string            `yaml:"listen_addr"`
			Algorithm         string            `yaml:"algorithm"`
			CentralHostname   string            `yaml:"central_hostname"`
			Neighbors         map[string]int    `yaml:"neighbors"`
			Peers             map[string]string `yaml:"peers"`
			RegistryTTLSec    int               `yaml:"registry_ttl_sec"`
			UpdateIntervalSec int               `yaml:"update_interval_sec"`
			TimeoutSec        int               `yaml:"timeout_sec"`
			DataDir           string            `yaml:"data_dir"`
			TLS               *struct {
				CertFile string `yaml:"cert_file"`
				KeyFile  string `yaml:"key_file"`
				CAFile   string `yaml:"ca_file"`
			} `yaml:"tls"`
		} `yaml:"node"`
		Observability struct {
			TraceAddr string `yaml:"trace_addr"`
			LogAddr   string `yaml:"log_addr"`
			Metrics   bool   `yaml:"metrics"`
		} `yaml:"observability"`
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var ymlConfig yamlConfig
	if err := yaml.NewDecoder(file).Decode(&ymlConfig); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	registryTTL := time.Duration(ymlConfig.Node.RegistryTTLSec) * time.Second
	if registryTTL <= 0 {
		registryTTL = 90 * time.Second
	}

	cfg := &nodeConfig{
		Hostname:        ymlConfig.Node.Hostname,
		ListenAddr:      ymlConfig.Node.ListenAddr,
		Algorithm:       ymlConfig.Node.Algorithm,
		CentralHostname: ymlConfig.Node.CentralHostname,
		Neighbors:       ymlConfig.Node.Neighbors,
		Peers:           ymlConfig.Node.Peers,
		RegistryTTL:     registryTTL,
		UpdateInterval:  time.Duration(ymlConfig.Node.UpdateIntervalSec) * time.Second,
		Timeout:         time.Duration(ymlConfig.Node.TimeoutSec) * time.Second,
		DataDir:         ymlConfig.Node.DataDir,
		Observability: observability.Config{
			Service:   ymlConfig.Node.Hostname,
			TraceAddr: ymlConfig.Observability.TraceAddr,
			LogAddr:   ymlConfig.Observability.LogAddr,
			Metrics:   ymlConfig.Observability.Metrics,
		},
	}

	if ymlConfig.Node.TLS != nil {
		cfg.TLS = &transport.TLSConfig{
			CertFile: ymlConfig.Node.TLS.CertFile,
			KeyFile:  ymlConfig.Node.TLS.KeyFile,
			CAFile:   ymlConfig.Node.TLS.CAFile,
		}
	}

	return cfg, nil
}
