package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/okdaichi/overlayd/internal/overlay"
	"github.com/okdaichi/overlayd/observability"
)

// TLSConfig configures mutual TLS between overlay participants.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string // optional: verify the peer's server certificate
}

func buildTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

// HTTPTransport implements overlay.Transport by POSTing a JSON-encoded
// envelope (the sender's hostname plus the Payload) to /message on
// each resolved peer address. Delivery is best-effort: a failed Send
// is logged and otherwise swallowed, since reliability for Neighbors
// rests on retry/ack and for the algorithms on the next periodic
// tick.
type HTTPTransport struct {
	self     overlay.Hostname
	registry *Registry
	client   *http.Client
	log      *slog.Logger
	rec      *observability.Recorder
}

// NewHTTPTransport creates an HTTPTransport sending as self, resolving
// peer addresses through registry. If tlsCfg is non-nil, requests use
// mutual TLS.
func NewHTTPTransport(self overlay.Hostname, registry *Registry, tlsCfg *TLSConfig) (*HTTPTransport, error) {
	rt := http.DefaultTransport.(*http.Transport).Clone()

	if tlsCfg != nil {
		cfg, err := buildTLSConfig(tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("transport TLS: %w", err)
		}
		rt.TLSClientConfig = cfg
	}

	return &HTTPTransport{
		self:     self,
		registry: registry,
		client:   &http.Client{Transport: rt, Timeout: 10 * time.Second},
		log:      slog.With("component", "http_transport", "hostname", self),
		rec:      observability.NewRecorder("http_transport"),
	}, nil
}

// Send implements overlay.Transport.
func (t *HTTPTransport) Send(hostname overlay.Hostname, payload overlay.Payload, isNew bool) {
	addr, ok := t.registry.Resolve(string(hostname))
	if !ok {
		t.log.Warn("send to unresolved peer dropped", "hostname", hostname)
		return
	}
	if err := t.post(context.Background(), addr, payload); err != nil {
		t.log.Warn("send failed", "hostname", hostname, "error", err)
	}
	if !isNew {
		t.rec.Retries(1)
	}
}

// Broadcasting implements overlay.Transport by sending payload to
// every peer currently known to the registry.
func (t *HTTPTransport) Broadcasting(payload overlay.Payload) {
	start := time.Now()
	peers := t.registry.All()
	reached := 0
	for hostname, addr := range peers {
		if err := t.post(context.Background(), addr, payload); err != nil {
			t.log.Warn("broadcast send failed", "hostname", hostname, "error", err)
			continue
		}
		reached++
	}
	t.rec.Flood(time.Since(start), len(peers), reached)
}

func (t *HTTPTransport) post(ctx context.Context, addr string, payload overlay.Payload) error {
	body, err := json.Marshal(inboundEnvelope{Source: t.self, Payload: payload})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("POST %s returned %d", req.URL, resp.StatusCode)
	}
	return nil
}
