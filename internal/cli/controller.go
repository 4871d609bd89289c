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

type controllerConfig struct {
	Hostname       string
	ListenAddr     string
	Peers          map[string]string
	RegistryTTL    time.Duration
	UpdateInterval time.Duration
	Timeout        time.Duration
	DataDir        string
	PeerURL        string
	SyncInterval   time.Duration
	TLS            *transport.TLSConfig
	Observability  observability.Config
}

const defaultControllerSyncInterval = 10 * time.Second

// RunController starts the centralized routing controller: it
// aggregates every member's reported adjacency into one link-state
// database and multicasts it back out.
func RunController(args []string) error {
	fs := flag.NewFlagSet("controller", flag.ExitOnError)
	configFile := fs.String("config", "config.controller.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := loadControllerConfig(*configFile)
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

	controller := overlay.NewCentralizedController(overlay.Config{
		Hostname:       overlay.Hostname(cfg.Hostname),
		Transport:      httpTransport,
		RoutingModel:   table,
		Neighbors:      neighbors,
		Dispatcher:     dispatcher,
		UpdateInterval: cfg.UpdateInterval,
		Timeout:        cfg.Timeout,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/message", transport.MessageHandlerFunc(dispatcher))
	mux.HandleFunc("/peers/", transport.PeerRegistrationHandlerFunc(registry))
	mux.HandleFunc("/table", forwarding.TableHandlerFunc(table))
	mux.HandleFunc("/sync", forwarding.SyncHandlerFunc(table))
	mux.HandleFunc("/graph", forwarding.GraphHandlerFunc(controller.LinkStateSnapshot))
	mux.HandleFunc("/path", forwarding.PathHandlerFunc(controller.LinkStateSnapshot))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	if cfg.PeerURL != "" {
		syncInterval := cfg.SyncInterval
		if syncInterval <= 0 {
			syncInterval = defaultControllerSyncInterval
		}
		syncer := forwarding.NewPeerSyncer(cfg.PeerURL, table, syncInterval)
		go syncer.Run(ctx)
		log.Printf("HA peer sync enabled: %s every %s", cfg.PeerURL, syncInterval)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	controller.Run()
	defer controller.Stop()

	observability.IncActiveNodes()
	defer observability.DecActiveNodes()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Routing controller started on %s", cfg.ListenAddr)
	log.Println("  /message      - inbound wire messages")
	log.Println("  /peers/<host> - PUT/DELETE: member address registration")
	log.Println("  /table        - GET: current routing table")
	log.Println("  /sync         - GET/PUT: HA routing table sync")
	log.Println("  /graph        - GET: aggregated link-state graph")
	log.Println("  /path         - GET: shortest-path query over the graph")
	log.Println("  /health       - health check")
	log.Println("  /metrics      - Prometheus metrics")

	<-ctx.Done()

	slog.Info("shutting down routing controller...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down http server: %v", err)
	}

	slog.Info("routing controller stopped")
	return nil
}

func loadControllerConfig(filename string) (*controllerConfig, error) {
	type yamlConfig struct {
		Controller struct {
			Hostname          string            `yaml:"hostname"`
			ListenAddr        string            `yaml:"listen_addr"`
			Peers             map[string]string `yaml:"peers"`
			RegistryTTLSec    int               `yaml:"registry_ttl_sec"`
			UpdateIntervalSec int               `yaml:"update_interval_sec"`
			TimeoutSec        int               `yaml:"timeout_sec"`
			DataDir           string            `yaml:"data_dir"`
			PeerURL           string            `yaml:"peer_url"`
			SyncIntervalSec   int               `yaml:"sync_interval_sec"`
			TLS               *struct {
				CertFile string `yaml:"cert_file"`
				KeyFile  string `yaml:"key_file"`
				CAFile   string `yaml:"ca_file"`
			} `yaml:"tls"`
		} `yaml:"controller"`
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

	registryTTL := time.Duration(ymlConfig.Controller.RegistryTTLSec) * time.Second
	if registryTTL <= 0 {
		registryTTL = 90 * time.Second
	}

	listenAddr := ymlConfig.Controller.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8090"
	}

	cfg := &controllerConfig{
		Hostname:       ymlConfig.Controller.Hostname,
		ListenAddr:     listenAddr,
		Peers:          ymlConfig.Controller.Peers,
		RegistryTTL:    registryTTL,
		UpdateInterval: time.Duration(ymlConfig.Controller.UpdateIntervalSec) * time.Second,
		Timeout:        time.Duration(ymlConfig.Controller.TimeoutSec) * time.Second,
		DataDir:        ymlConfig.Controller.DataDir,
		PeerURL:        ymlConfig.Controller.PeerURL,
		SyncInterval:   time.Duration(ymlConfig.Controller.SyncIntervalSec) * time.Second,
		Observability: observability.Config{
			Service:   ymlConfig.Controller.Hostname,
			TraceAddr: ymlConfig.Observability.TraceAddr,
			LogAddr:   ymlConfig.Observability.LogAddr,
			Metrics:   ymlConfig.Observability.Metrics,
		},
	}

	if ymlConfig.Controller.TLS != nil {
		cfg.TLS = &transport.TLSConfig{
			CertFile: ymlConfig.Controller.TLS.CertFile,
			KeyFile:  ymlConfig.Controller.TLS.KeyFile,
			CAFile:   ymlConfig.Controller.TLS.CAFile,
		}
	}

	return cfg, nil
}
