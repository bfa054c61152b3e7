// Package natsutil provides NATS JetStream configuration and helpers
package natsutil

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Subject prefixes used across the platform.
const (
	// FrameSubjectPrefix is where detectors publish per-frame detections,
	// one subject per camera: frame.<camera_id>.
	FrameSubjectPrefix = "frame."

	// AlertSubjectPrefix is where the analyzer publishes admitted alerts:
	// alert.<severity>.<type>.
	AlertSubjectPrefix = "alert."

	// ResetSubjectPrefix carries session boundary control messages:
	// camera.reset.<camera_id>. Core NATS, not persisted.
	ResetSubjectPrefix = "camera.reset."
)

// StreamConfigs defines all streams used by the framewatch platform
var StreamConfigs = map[string]jetstream.StreamConfig{
	"FRAMES": {
		Name:              "FRAMES",
		Description:       "Per-frame detection events from camera detectors",
		Subjects:          []string{"frame.>"},
		Retention:         jetstream.LimitsPolicy,
		MaxBytes:          1 * 1024 * 1024 * 1024, // 1GB
		MaxAge:            6 * time.Hour,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: 100000,
	},
	"ALERTS": {
		Name:        "ALERTS",
		Description: "Deduplicated security alerts",
		Subjects:    []string{"alert.>"},
		Retention:   jetstream.LimitsPolicy,
		MaxBytes:    512 * 1024 * 1024, // 512MB
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
	},
}

// ConsumerConfigs defines consumers for each agent type
var ConsumerConfigs = map[string]jetstream.ConsumerConfig{
	"analyzer": {
		Durable:       "analyzer",
		Description:   "Analyzer agent consumer for detection frames",
		FilterSubject: "frame.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		MaxAckPending: 1000,
	},
}

// SetupStreams creates all required streams
func SetupStreams(ctx context.Context, js jetstream.JetStream) error {
	for _, cfg := range StreamConfigs {
		_, err := js.Stream(ctx, cfg.Name)
		if err == nil {
			continue // Stream exists
		}

		_, err = js.CreateStream(ctx, cfg)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetupConsumer creates a consumer for an agent
func SetupConsumer(ctx context.Context, js jetstream.JetStream, streamName, consumerName string) (jetstream.Consumer, error) {
	cfg, ok := ConsumerConfigs[consumerName]
	if !ok {
		cfg = jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    3,
			MaxAckPending: 100,
		}
	}

	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		return nil, err
	}

	consumer, err := stream.Consumer(ctx, cfg.Durable)
	if err == nil {
		return consumer, nil
	}

	return stream.CreateConsumer(ctx, cfg)
}
