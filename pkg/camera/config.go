// Package camera holds per-camera configuration and calibration helpers.
// Configuration is owned by the camera entity and read-only to the rules.
package camera

import (
	"context"
	"sync"

	"github.com/halcyon-security/framewatch/pkg/geometry"
)

// SensitiveArea is a named point of interest used by the rapid approach rule.
type SensitiveArea struct {
	Name   string         `json:"name"`
	Center geometry.Point `json:"center"`
}

// Config is the per-camera zone and calibration configuration.
type Config struct {
	CameraID         string          `json:"camera_id"`
	Name             string          `json:"name,omitempty"`
	Location         string          `json:"location,omitempty"`
	IsRestrictedZone bool            `json:"is_restricted_zone"`
	RedZones         []geometry.Zone `json:"red_zones,omitempty"`
	YellowZones      []geometry.Zone `json:"yellow_zones,omitempty"`
	SensitiveAreas   []SensitiveArea `json:"sensitive_areas,omitempty"`

	// PixelsPerMeter is the calibrated scale factor, nil when the camera
	// has not been calibrated.
	PixelsPerMeter *float64 `json:"pixels_per_meter,omitempty"`
}

// Scale returns the calibrated pixels-per-meter value, or the uncalibrated
// default when none is set.
func (c *Config) Scale() float64 {
	if c != nil && c.PixelsPerMeter != nil && *c.PixelsPerMeter > 0 {
		return *c.PixelsPerMeter
	}
	return DefaultPixelsPerMeter
}

// Provider supplies camera configuration by camera id.
type Provider interface {
	CameraConfig(ctx context.Context, cameraID string) (*Config, error)
}

// StaticProvider serves configuration from an in-memory map. Cameras
// without an entry get a zero-value config (no zones, not restricted).
type StaticProvider struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

// NewStaticProvider creates a provider from a set of configs.
func NewStaticProvider(configs ...*Config) *StaticProvider {
	p := &StaticProvider{configs: make(map[string]*Config)}
	for _, c := range configs {
		p.configs[c.CameraID] = c
	}
	return p
}

// Set registers or replaces a camera's configuration.
func (p *StaticProvider) Set(cfg *Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs[cfg.CameraID] = cfg
}

// CameraConfig implements Provider.
func (p *StaticProvider) CameraConfig(_ context.Context, cameraID string) (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cfg, ok := p.configs[cameraID]; ok {
		return cfg, nil
	}
	return &Config{CameraID: cameraID}, nil
}
