// Detector Simulator Agent
// Generates synthetic detection frames simulating camera object detection
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/halcyon-security/framewatch/pkg/agent"
	"github.com/halcyon-security/framewatch/pkg/geometry"
	"github.com/halcyon-security/framewatch/pkg/messages"
	natsutil "github.com/halcyon-security/framewatch/pkg/nats"
)

// Simulation limits
const (
	DefaultCameraCount = 3
	DefaultFPS         = 2.0

	frameWidth  = 1920.0
	frameHeight = 1080.0

	personWidth  = 60.0
	personHeight = 160.0
)

// walker is one simulated person moving through a camera's view
type walker struct {
	id       string
	x, y     float64
	vx, vy   float64
	crouched bool
}

// droppedObject is a simulated stationary object
type droppedObject struct {
	id    string
	class string
	x, y  float64
}

// cameraSim holds the simulation state for one camera
type cameraSim struct {
	cameraID string
	frameNum int64
	walkers  []*walker
	objects  []droppedObject
	rng      *rand.Rand
}

func newCameraSim(cameraID string, seed int64) *cameraSim {
	rng := rand.New(rand.NewSource(seed))
	sim := &cameraSim{cameraID: cameraID, rng: rng}

	count := 2 + rng.Intn(4)
	for i := 0; i < count; i++ {
		sim.walkers = append(sim.walkers, sim.newWalker())
	}
	return sim
}

func (s *cameraSim) newWalker() *walker {
	return &walker{
		id: "person-" + uuid.New().String()[:8],
		x:  s.rng.Float64() * frameWidth,
		y:  s.rng.Float64() * frameHeight,
		vx: (s.rng.Float64() - 0.5) * 40,
		vy: (s.rng.Float64() - 0.5) * 40,
	}
}

// step advances the simulation one frame and returns the detections
func (s *cameraSim) step(interval float64) []messages.Detection {
	s.frameNum++
	var detections []messages.Detection

	for _, w := range s.walkers {
		// Occasional behavior changes: sprint, turn, crouch, stop
		switch s.rng.Intn(40) {
		case 0:
			w.vx *= 8
			w.vy *= 8
		case 1:
			w.vx, w.vy = -w.vx, -w.vy
		case 2:
			w.crouched = !w.crouched
		case 3:
			w.vx, w.vy = 0, 0
		}

		w.x += w.vx * interval
		w.y += w.vy * interval

		// Bounce off frame edges
		if w.x < 0 || w.x > frameWidth {
			w.vx = -w.vx
			w.x = clamp(w.x, 0, frameWidth)
		}
		if w.y < 0 || w.y > frameHeight {
			w.vy = -w.vy
			w.y = clamp(w.y, 0, frameHeight)
		}

		width, height := personWidth, personHeight
		if w.crouched {
			width, height = personHeight, personWidth
		}

		detections = append(detections, messages.Detection{
			EntityID:   w.id,
			Kind:       messages.KindPerson,
			Class:      "person",
			Confidence: 0.75 + s.rng.Float64()*0.24,
			BBox: geometry.BoundingBox{
				Format: geometry.BoxXYWH,
				Coords: []float64{w.x, w.y, width, height},
			},
		})
	}

	// Rarely drop a bag where a walker stands
	if s.rng.Intn(200) == 0 && len(s.walkers) > 0 {
		w := s.walkers[s.rng.Intn(len(s.walkers))]
		s.objects = append(s.objects, droppedObject{
			id:    "object-" + uuid.New().String()[:8],
			class: []string{"bag", "backpack", "suitcase"}[s.rng.Intn(3)],
			x:     w.x,
			y:     w.y,
		})
	}

	// Rarely show a weapon
	if s.rng.Intn(400) == 0 && len(s.walkers) > 0 {
		w := s.walkers[s.rng.Intn(len(s.walkers))]
		detections = append(detections, messages.Detection{
			EntityID:   "object-" + uuid.New().String()[:8],
			Kind:       messages.KindObject,
			Class:      []string{"knife", "gun", "bat"}[s.rng.Intn(3)],
			Confidence: 0.6 + s.rng.Float64()*0.4,
			BBox: geometry.BoundingBox{
				Format: geometry.BoxXYWH,
				Coords: []float64{w.x + 30, w.y + 40, 40, 20},
			},
		})
	}

	for _, obj := range s.objects {
		detections = append(detections, messages.Detection{
			EntityID:   obj.id,
			Kind:       messages.KindObject,
			Class:      obj.class,
			Confidence: 0.8 + s.rng.Float64()*0.15,
			BBox: geometry.BoundingBox{
				Format: geometry.BoxXYWH,
				Coords: []float64{obj.x, obj.y, 50, 40},
			},
		})
	}

	return detections
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DetectorAgent publishes synthetic detection frames
type DetectorAgent struct {
	*agent.BaseAgent
	logger zerolog.Logger
	sims   []*cameraSim
	fps    float64
}

// NewDetectorAgent creates a new detector agent
func NewDetectorAgent(cfg agent.Config, cameraCount int, fps float64) (*DetectorAgent, error) {
	base, err := agent.NewBaseAgent(cfg)
	if err != nil {
		return nil, err
	}

	sims := make([]*cameraSim, 0, cameraCount)
	for i := 0; i < cameraCount; i++ {
		cameraID := fmt.Sprintf("cam-%02d", i+1)
		sims = append(sims, newCameraSim(cameraID, time.Now().UnixNano()+int64(i)))
	}

	return &DetectorAgent{
		BaseAgent: base,
		logger:    *base.Logger(),
		sims:      sims,
		fps:       fps,
	}, nil
}

// Run starts the detector agent
func (a *DetectorAgent) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("failed to start base agent: %w", err)
	}

	if err := natsutil.SetupStreams(ctx, a.JetStream()); err != nil {
		return fmt.Errorf("failed to setup streams: %w", err)
	}

	a.logger.Info().
		Int("cameras", len(a.sims)).
		Float64("fps", a.fps).
		Msg("Detector agent started, publishing to FRAMES stream")

	interval := time.Duration(float64(time.Second) / a.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, sim := range a.sims {
				if err := a.publishFrame(ctx, sim); err != nil {
					a.logger.Error().Err(err).Str("camera_id", sim.cameraID).Msg("Failed to publish frame")
					a.RecordError("publish_error")
				}
			}
		}
	}
}

// publishFrame advances one camera and publishes its frame
func (a *DetectorAgent) publishFrame(ctx context.Context, sim *cameraSim) error {
	start := time.Now()

	frame := messages.NewDetectionFrame(a.ID(), sim.cameraID)
	frame.FrameNumber = sim.frameNum + 1
	frame.FPS = a.fps
	frame.Detections = sim.step(1.0 / a.fps)

	data, err := messages.MarshalWithSignature(frame, a.Config().Secret)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	if _, err := a.JetStream().Publish(ctx, frame.Subject(), data); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}

	a.RecordMessage("success", "frame")
	a.RecordLatency("frame", time.Since(start))
	return nil
}

func main() {
	// Configuration from environment
	cfg := agent.Config{
		ID:       getEnv("AGENT_ID", "detector-"+uuid.New().String()[:8]),
		Type:     agent.AgentTypeDetector,
		NATSUrl:  getEnv("NATS_URL", "nats://localhost:4222"),
		NATSUser: getEnv("NATS_USER", ""),
		NATSPass: getEnv("NATS_PASSWORD", ""),
		Secret:   []byte(getEnv("AGENT_SECRET", "detector-secret")),
	}

	cameraCount := DefaultCameraCount
	if v, err := strconv.Atoi(getEnv("CAMERA_COUNT", "")); err == nil && v > 0 {
		cameraCount = v
	}
	fps := DefaultFPS
	if v, err := strconv.ParseFloat(getEnv("FPS", ""), 64); err == nil && v > 0 {
		fps = v
	}

	detector, err := NewDetectorAgent(cfg, cameraCount, fps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create detector agent: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start metrics server
	go func() {
		metricsAddr := getEnv("METRICS_ADDR", ":9091")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(detector.Metrics(), promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			health := detector.Health()
			if health.Healthy {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			json.NewEncoder(w).Encode(health)
		})
		detector.logger.Info().Str("addr", metricsAddr).Msg("Starting metrics server")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			detector.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	// Run agent
	go func() {
		if err := detector.Run(ctx); err != nil && err != context.Canceled {
			detector.logger.Error().Err(err).Msg("Detector agent error")
			cancel()
		}
	}()

	sig := <-sigChan
	detector.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := detector.Stop(shutdownCtx); err != nil {
		detector.logger.Error().Err(err).Msg("Error during shutdown")
	}

	detector.logger.Info().Msg("Detector agent stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
