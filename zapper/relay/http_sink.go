package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

const submitMethod = "submit_promise"

// FailoverConfig controls how the HTTP sink moves between relayer endpoints.
type FailoverConfig struct {
	// HealthCheckInterval is how often to check if the primary endpoint is back up
	HealthCheckInterval time.Duration
	// HealthPath is requested with GET to probe an endpoint
	HealthPath string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		HealthCheckInterval: 30 * time.Second,
		HealthPath:          "/health",
		Timeout:             10 * time.Second,
	}
}

type rpcRequest struct {
	JsonRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  runtime.Promise `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JsonRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// HTTPSink posts promises as JSON-RPC 2.0 requests to an external relayer. A failed
// delivery is never re-sent; it only moves later deliveries to a backup endpoint.
type HTTPSink struct {
	httpClient *http.Client
	primaryURL string
	backupURLs []string
	currentURL string
	mu         sync.RWMutex
	cfg        FailoverConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

// NewHTTPSink validates the endpoints and starts the health checker when backups exist.
func NewHTTPSink(primaryURL string, backupURLs []string, cfg FailoverConfig) (*HTTPSink, error) {
	if _, err := url.ParseRequestURI(primaryURL); err != nil {
		return nil, fmt.Errorf("invalid relayer url %q: %w", primaryURL, err)
	}

	validBackups := make([]string, 0, len(backupURLs))
	for _, u := range backupURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, u)
	}

	s := &HTTPSink{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		primaryURL: primaryURL,
		backupURLs: validBackups,
		currentURL: primaryURL,
		cfg:        cfg,
	}
	if len(validBackups) > 0 && cfg.HealthCheckInterval > 0 {
		s.stopCh = make(chan struct{})
		s.stoppedCh = make(chan struct{})
		go s.healthLoop()
	}

	log.Info().
		Str("primary", primaryURL).
		Int("backups", len(validBackups)).
		Msg("HTTP sink initialized")
	return s, nil
}

func (s *HTTPSink) Name() string {
	return "http"
}

// CurrentURL returns the endpoint the next delivery goes to.
func (s *HTTPSink) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentURL
}

// Deliver posts p once to the current endpoint.
func (s *HTTPSink) Deliver(ctx context.Context, p runtime.Promise) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JsonRPC: "2.0", ID: p.ID, Method: submitMethod, Params: p})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal promise %d: %w", p.ID, err)
	}

	endpoint := s.CurrentURL()
	result, err := s.post(ctx, endpoint, body)
	if err != nil {
		// a cancelled delivery says nothing about the endpoint
		if ctx.Err() == nil && len(s.backupURLs) > 0 {
			s.failover(ctx, endpoint)
		}
		return nil, err
	}
	return result, nil
}

func (s *HTTPSink) post(ctx context.Context, endpoint string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post to %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, endpoint, string(raw))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("relayer error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// failover moves to the next healthy endpoint after failed, unless another delivery
// already moved away from it. Endpoints are probed without holding the lock.
func (s *HTTPSink) failover(ctx context.Context, failed string) {
	if s.CurrentURL() != failed {
		return
	}

	all := append([]string{s.primaryURL}, s.backupURLs...)
	currentIdx := 0
	for i, u := range all {
		if u == failed {
			currentIdx = i
			break
		}
	}
	for i := 1; i < len(all); i++ {
		next := all[(currentIdx+i)%len(all)]
		if !s.isEndpointHealthy(ctx, next) {
			continue
		}
		s.mu.Lock()
		if s.currentURL == failed {
			s.currentURL = next
			log.Info().Str("url", next).Msg("Failover to endpoint")
		}
		s.mu.Unlock()
		return
	}
	log.Warn().Str("url", failed).Msg("All endpoints unhealthy, staying on current")
}

func (s *HTTPSink) isEndpointHealthy(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+s.cfg.HealthPath, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

func (s *HTTPSink) healthLoop() {
	defer close(s.stoppedCh)
	ticker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.restorePrimary(ctx)
		}
	}
}

func (s *HTTPSink) restorePrimary(ctx context.Context) {
	if s.CurrentURL() == s.primaryURL {
		return
	}
	if !s.isEndpointHealthy(ctx, s.primaryURL) {
		return
	}
	s.mu.Lock()
	s.currentURL = s.primaryURL
	s.mu.Unlock()
	log.Info().Str("url", s.primaryURL).Msg("Restored primary endpoint")
}

// Close stops the health checker.
func (s *HTTPSink) Close() {
	if s.stopCh == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.stoppedCh
	})
}
