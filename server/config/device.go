package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// TimeRange is a daily schedule window in seconds from midnight.
type TimeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether the given seconds-from-midnight falls inside the
// range, inclusive on both ends.
func (t TimeRange) Contains(secondOfDay int) bool {
	return secondOfDay >= t.Start && secondOfDay <= t.End
}

// DeviceConfig holds per-camera detection and learning settings. Instances
// handed to components are snapshots; reconfiguration goes through the
// Service, which replaces the stored copy.
type DeviceConfig struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`

	MinPersonConfidence  float64 `json:"min_person_confidence"`
	MinVehicleConfidence float64 `json:"min_vehicle_confidence"`

	AnomalyThreshold              float64 `json:"anomaly_threshold"`
	EnableUnknownVisitorDetection bool    `json:"enable_unknown_visitor_detection"`
	UnknownVisitorThresholdSecs   int     `json:"unknown_visitor_threshold_secs"`
	EnableActivityAnalysis        bool    `json:"enable_activity_analysis"`

	EnableLearning       bool `json:"enable_learning"`
	BaselineDurationDays int  `json:"baseline_duration_days"`

	BusinessHours []TimeRange `json:"business_hours"`
}

// NewDeviceConfig returns the default configuration for a camera.
func NewDeviceConfig(deviceID string) *DeviceConfig {
	return &DeviceConfig{
		DeviceID:                      deviceID,
		MinPersonConfidence:           0.6,
		MinVehicleConfidence:          0.6,
		AnomalyThreshold:              0.7,
		EnableUnknownVisitorDetection: true,
		UnknownVisitorThresholdSecs:   300,
		EnableActivityAnalysis:        true,
		EnableLearning:                true,
		BaselineDurationDays:          7,
		BusinessHours:                 []TimeRange{{Start: 8 * 3600, End: 18 * 3600}},
	}
}

func (d *DeviceConfig) Validate() error {
	if d.AnomalyThreshold < 0 || d.AnomalyThreshold > 1 {
		return fmt.Errorf("anomaly threshold %.2f out of range [0,1]", d.AnomalyThreshold)
	}
	if d.UnknownVisitorThresholdSecs < 0 {
		return fmt.Errorf("unknown visitor threshold must not be negative")
	}
	for _, tr := range d.BusinessHours {
		if tr.Start < 0 || tr.End > 24*3600 || tr.Start > tr.End {
			return fmt.Errorf("invalid business hours range %d-%d", tr.Start, tr.End)
		}
	}
	return nil
}

// InBusinessHours reports whether the given seconds-from-midnight falls
// within any configured business-hours window.
func (d *DeviceConfig) InBusinessHours(secondOfDay int) bool {
	for _, tr := range d.BusinessHours {
		if tr.Contains(secondOfDay) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers hold an immutable snapshot.
func (d *DeviceConfig) Clone() *DeviceConfig {
	copied := *d
	copied.BusinessHours = append([]TimeRange(nil), d.BusinessHours...)
	return &copied
}

// Service owns device configurations keyed by camera id. It is constructed
// explicitly and injected into components; there is no package-level state.
type Service struct {
	dataPath string
	devices  map[string]*DeviceConfig
	mutex    sync.Mutex
	logger   *zap.Logger
}

func NewService(dataPath string, logger *zap.Logger) *Service {
	return &Service{
		dataPath: dataPath,
		devices:  make(map[string]*DeviceConfig),
		logger:   logger,
	}
}

// DeviceConfig returns a snapshot of the configuration for the camera,
// creating a default one on first access.
func (s *Service) DeviceConfig(deviceID string) *DeviceConfig {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if cfg, ok := s.devices[deviceID]; ok {
		return cfg.Clone()
	}

	cfg := NewDeviceConfig(deviceID)
	if loaded, err := s.loadFromDisk(deviceID); err == nil {
		cfg = loaded
	} else if !os.IsNotExist(err) {
		s.logger.Warn("Failed to load device config, using defaults",
			zap.String("device_id", deviceID),
			zap.Error(err))
	}

	s.devices[deviceID] = cfg
	return cfg.Clone()
}

// UpdateDeviceConfig validates and stores a new configuration snapshot,
// persisting it to disk.
func (s *Service) UpdateDeviceConfig(cfg *DeviceConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid device config: %w", err)
	}

	s.mutex.Lock()
	s.devices[cfg.DeviceID] = cfg.Clone()
	s.mutex.Unlock()

	if err := s.saveToDisk(cfg); err != nil {
		s.logger.Error("Failed to persist device config",
			zap.String("device_id", cfg.DeviceID),
			zap.Error(err))
		return err
	}

	s.logger.Info("Device config updated", zap.String("device_id", cfg.DeviceID))
	return nil
}

// DeviceIDs returns the ids of all known devices.
func (s *Service) DeviceIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) configFile(deviceID string) string {
	return filepath.Join(s.dataPath, "config", deviceID+".json")
}

func (s *Service) loadFromDisk(deviceID string) (*DeviceConfig, error) {
	data, err := os.ReadFile(s.configFile(deviceID))
	if err != nil {
		return nil, err
	}

	cfg := NewDeviceConfig(deviceID)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse device config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Service) saveToDisk(cfg *DeviceConfig) error {
	dir := filepath.Join(s.dataPath, "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal device config: %w", err)
	}

	return os.WriteFile(s.configFile(cfg.DeviceID), data, 0o644)
}
