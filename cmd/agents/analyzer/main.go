// Analyzer Agent - Evaluates detection frames against security rules and
// publishes deduplicated alerts
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/halcyon-security/framewatch/pkg/agent"
	"github.com/halcyon-security/framewatch/pkg/camera"
	"github.com/halcyon-security/framewatch/pkg/dedup"
	"github.com/halcyon-security/framewatch/pkg/messages"
	natsutil "github.com/halcyon-security/framewatch/pkg/nats"
	"github.com/halcyon-security/framewatch/pkg/policy"
	"github.com/halcyon-security/framewatch/pkg/postgres"
	"github.com/halcyon-security/framewatch/pkg/rules"
	"github.com/halcyon-security/framewatch/pkg/track"
)

// configCacheTTL bounds how stale a cached camera config may get before the
// provider is asked again.
const configCacheTTL = 60 * time.Second

// cameraJob is one unit of work for a camera worker: either a frame to
// analyze or a session reset.
type cameraJob struct {
	msg   jetstream.Msg
	reset bool
}

// AnalyzerAgent consumes detection frames and produces security alerts
type AnalyzerAgent struct {
	*agent.BaseAgent
	logger   zerolog.Logger
	consumer jetstream.Consumer

	analyzer *rules.Analyzer
	dedup    *dedup.Engine
	policy   *policy.Client
	configs  *configCache

	// Per-camera workers. Each camera's frames are processed sequentially
	// by its own goroutine so rule state never sees out-of-order frames.
	mu      sync.Mutex
	workers map[string]chan cameraJob
	wg      sync.WaitGroup
}

// NewAnalyzerAgent creates a new analyzer agent
func NewAnalyzerAgent(cfg agent.Config, store dedup.AlertStore, provider camera.Provider) (*AnalyzerAgent, error) {
	base, err := agent.NewBaseAgent(cfg)
	if err != nil {
		return nil, err
	}

	logger := *base.Logger()

	a := &AnalyzerAgent{
		BaseAgent: base,
		logger:    logger,
		analyzer:  rules.NewAnalyzer(track.NewStore(), logger),
		dedup:     dedup.NewEngine(store, logger),
		configs:   newConfigCache(provider, logger),
		workers:   make(map[string]chan cameraJob),
	}

	if cfg.PolicyUrl != "" {
		a.policy = policy.NewClient(cfg.PolicyUrl)
	}

	return a, nil
}

// Run starts the analyzer agent
func (a *AnalyzerAgent) Run(ctx context.Context) error {
	// Start base agent (connects to NATS)
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("failed to start base agent: %w", err)
	}

	// Ensure streams exist
	if err := natsutil.SetupStreams(ctx, a.JetStream()); err != nil {
		return fmt.Errorf("failed to setup streams: %w", err)
	}

	// Create consumer for detection frames
	consumer, err := natsutil.SetupConsumer(ctx, a.JetStream(), "FRAMES", "analyzer")
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}
	a.consumer = consumer

	// Session resets arrive over core NATS and are routed through the
	// camera's own worker so a reset never interleaves with a frame.
	resetSub, err := a.NATS().Subscribe(natsutil.ResetSubjectPrefix+">", func(msg *nats.Msg) {
		cameraID := strings.TrimPrefix(msg.Subject, natsutil.ResetSubjectPrefix)
		if cameraID == "" {
			return
		}
		a.dispatch(ctx, cameraID, cameraJob{reset: true})
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to reset subject: %w", err)
	}
	defer resetSub.Unsubscribe()

	a.logger.Info().Msg("Analyzer agent started, consuming from FRAMES stream")

	err = a.consumeMessages(ctx)

	// Drain workers before returning
	a.mu.Lock()
	for _, ch := range a.workers {
		close(ch)
	}
	a.workers = make(map[string]chan cameraJob)
	a.mu.Unlock()
	a.wg.Wait()

	return err
}

// consumeMessages fetches frames and fans them out to camera workers
func (a *AnalyzerAgent) consumeMessages(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Fetch messages with timeout
		msgs, err := a.consumer.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if err == context.DeadlineExceeded || err == context.Canceled {
				continue
			}
			a.logger.Error().Err(err).Msg("Failed to fetch messages")
			a.RecordError("fetch_error")
			time.Sleep(time.Second)
			continue
		}

		for msg := range msgs.Messages() {
			cameraID := strings.TrimPrefix(msg.Subject(), natsutil.FrameSubjectPrefix)
			if cameraID == "" {
				a.logger.Warn().Str("subject", msg.Subject()).Msg("Frame on unexpected subject")
				msg.Term()
				continue
			}
			a.dispatch(ctx, cameraID, cameraJob{msg: msg})
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			a.logger.Warn().Err(msgs.Error()).Msg("Message batch error")
		}
	}
}

// dispatch hands a job to the camera's worker, starting one on first use
func (a *AnalyzerAgent) dispatch(ctx context.Context, cameraID string, job cameraJob) {
	a.mu.Lock()
	ch, ok := a.workers[cameraID]
	if !ok {
		ch = make(chan cameraJob, 64)
		a.workers[cameraID] = ch
		a.wg.Add(1)
		go a.cameraWorker(ctx, cameraID, ch)
	}
	a.mu.Unlock()

	select {
	case ch <- job:
	case <-ctx.Done():
	}
}

// cameraWorker processes one camera's jobs in order
func (a *AnalyzerAgent) cameraWorker(ctx context.Context, cameraID string, jobs <-chan cameraJob) {
	defer a.wg.Done()

	for job := range jobs {
		if job.reset {
			a.analyzer.Reset(cameraID)
			a.RecordMessage("success", "reset")
			continue
		}

		if err := a.processFrame(ctx, job.msg); err != nil {
			a.logger.Error().Err(err).Str("camera_id", cameraID).Msg("Failed to process frame")
			a.RecordError("process_error")
			job.msg.Nak()
		} else {
			job.msg.Ack()
		}
	}
}

// processFrame runs the rules over one frame and publishes admitted alerts
func (a *AnalyzerAgent) processFrame(ctx context.Context, msg jetstream.Msg) error {
	start := time.Now()

	var frame messages.DetectionFrame
	if err := json.Unmarshal(msg.Data(), &frame); err != nil {
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	correlationID := frame.Envelope.CorrelationID
	if correlationID == "" {
		correlationID = frame.Envelope.MessageID
	}

	cfg := a.configs.Get(ctx, frame.CameraID)
	result := a.analyzer.AnalyzeFrame(&frame, cfg)

	for _, cand := range result.Candidates {
		alert, created, err := a.dedup.EmitOrSuppress(ctx, cand, a.ID())
		if err != nil {
			a.logger.Error().Err(err).
				Str("correlation_id", correlationID).
				Str("alert_type", cand.Type).
				Msg("Failed to persist alert")
			a.RecordError("persist_error")
			continue
		}
		if !created {
			a.RecordMessage("suppressed", "alert")
			continue
		}

		alert.Envelope = alert.Envelope.WithCorrelation(correlationID, frame.Envelope.MessageID)

		if err := a.publishAlert(ctx, alert); err != nil {
			a.logger.Error().Err(err).
				Str("correlation_id", correlationID).
				Str("alert_id", alert.AlertID).
				Msg("Failed to publish alert")
			a.RecordError("publish_error")
			continue
		}

		a.RecordMessage("success", "alert")
		a.logger.Info().
			Str("correlation_id", correlationID).
			Str("alert_id", alert.AlertID).
			Str("alert_type", alert.Type).
			Str("severity", string(alert.Severity)).
			Str("camera_id", alert.CameraID).
			Msg("Alert published")
	}

	duration := time.Since(start)
	a.RecordMessage("success", "frame")
	a.RecordLatency("frame", duration)

	a.logger.Debug().
		Str("correlation_id", correlationID).
		Str("camera_id", frame.CameraID).
		Int64("frame", frame.FrameNumber).
		Int("persons", result.Summary.PersonsDetected).
		Int("alerts", result.Summary.AlertsCount).
		Dur("latency_ms", duration).
		Msg("Frame analyzed")

	return nil
}

// publishAlert writes an alert to the ALERTS stream and, when the policy
// service approves, to the escalation subject for push notification
func (a *AnalyzerAgent) publishAlert(ctx context.Context, alert *messages.Alert) error {
	data, err := messages.MarshalWithSignature(alert, a.Config().Secret)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if _, err := a.JetStream().Publish(ctx, alert.Subject(), data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	escalate := alert.Severity.Rank() >= messages.SeverityHigh.Rank()
	if a.policy != nil {
		decision, err := a.policy.ShouldEscalate(ctx, alert)
		if err != nil {
			a.logger.Warn().Err(err).Str("alert_id", alert.AlertID).Msg("Escalation policy unavailable, using severity default")
		}
		escalate = decision
	}

	if escalate {
		subject := "escalation." + string(alert.Severity) + "." + alert.Type
		if err := a.NATS().Publish(subject, data); err != nil {
			a.logger.Warn().Err(err).Str("alert_id", alert.AlertID).Msg("Failed to publish escalation")
		}
	}

	return nil
}

// configCache caches camera configuration lookups with a short TTL so per-
// frame analysis does not hit the database
type configCache struct {
	provider camera.Provider
	logger   zerolog.Logger

	mu      sync.Mutex
	entries map[string]cachedConfig
}

type cachedConfig struct {
	cfg     *camera.Config
	fetched time.Time
}

func newConfigCache(provider camera.Provider, logger zerolog.Logger) *configCache {
	return &configCache{
		provider: provider,
		logger:   logger.With().Str("component", "config_cache").Logger(),
		entries:  make(map[string]cachedConfig),
	}
}

// Get returns the camera's config, serving from cache while fresh. Provider
// failures fall back to the last known config, or a zero-value config for a
// camera never seen before.
func (c *configCache) Get(ctx context.Context, cameraID string) *camera.Config {
	c.mu.Lock()
	entry, ok := c.entries[cameraID]
	c.mu.Unlock()

	if ok && time.Since(entry.fetched) < configCacheTTL {
		return entry.cfg
	}

	cfg, err := c.provider.CameraConfig(ctx, cameraID)
	if err != nil {
		c.logger.Warn().Err(err).Str("camera_id", cameraID).Msg("Camera config lookup failed")
		if ok {
			return entry.cfg
		}
		return &camera.Config{CameraID: cameraID}
	}

	c.mu.Lock()
	c.entries[cameraID] = cachedConfig{cfg: cfg, fetched: time.Now()}
	c.mu.Unlock()

	return cfg
}

func main() {
	// Configuration from environment
	cfg := agent.Config{
		ID:        getEnv("AGENT_ID", "analyzer-"+uuid.New().String()[:8]),
		Type:      agent.AgentTypeAnalyzer,
		NATSUrl:   getEnv("NATS_URL", "nats://localhost:4222"),
		NATSUser:  getEnv("NATS_USER", ""),
		NATSPass:  getEnv("NATS_PASSWORD", ""),
		PolicyUrl: getEnv("POLICY_URL", ""),
		DBUrl:     getEnv("DB_URL", ""),
		Secret:    []byte(getEnv("AGENT_SECRET", "analyzer-secret")),
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("agent_id", cfg.ID).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alert persistence: Postgres when configured, in-memory otherwise
	var store dedup.AlertStore
	var provider camera.Provider
	if cfg.DBUrl != "" {
		pool, err := postgres.NewPoolFromURL(ctx, cfg.DBUrl)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()
		store = pool
		provider = pool
	} else {
		logger.Warn().Msg("DB_URL not set, using in-memory alert store")
		store = dedup.NewMemStore()
		provider = camera.NewStaticProvider()
	}

	// Create agent
	analyzer, err := NewAnalyzerAgent(cfg, store, provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create analyzer agent: %v\n", err)
		os.Exit(1)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start metrics server
	go func() {
		metricsAddr := getEnv("METRICS_ADDR", ":9090")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(analyzer.Metrics(), promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			health := analyzer.Health()
			if health.Healthy {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			json.NewEncoder(w).Encode(health)
		})
		analyzer.logger.Info().Str("addr", metricsAddr).Msg("Starting metrics server")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			analyzer.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	// Run agent
	go func() {
		if err := analyzer.Run(ctx); err != nil && err != context.Canceled {
			analyzer.logger.Error().Err(err).Msg("Analyzer agent error")
			cancel()
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	analyzer.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := analyzer.Stop(shutdownCtx); err != nil {
		analyzer.logger.Error().Err(err).Msg("Error during shutdown")
	}

	analyzer.logger.Info().Msg("Analyzer agent stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
