// Package config holds the service configuration. Values come from a YAML
// file overlaid on built-in defaults; a missing file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bcm-service/internal/door"
	"bcm-service/internal/fault"
	"bcm-service/internal/lighting"
	"bcm-service/internal/turnsignal"
)

// Config holds all service configuration.
type Config struct {
	CAN        CANConfig        `yaml:"can"`
	Redis      RedisConfig      `yaml:"redis"`
	Web        WebConfig        `yaml:"web"`
	Timing     TimingConfig     `yaml:"timing"`
	Door       DoorConfig       `yaml:"door"`
	Lighting   LightingConfig   `yaml:"lighting"`
	TurnSignal TurnSignalConfig `yaml:"turn_signal"`
	Fault      FaultConfig      `yaml:"fault"`
	Hardware   HardwareConfig   `yaml:"hardware"`
}

type CANConfig struct {
	Interface string `yaml:"interface"` // e.g. can0, vcan0
	RxBuffer  int    `yaml:"rx_buffer"` // queued inbound frames
}

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Enabled    bool   `yaml:"enabled"`
}

// TimingConfig sets the scheduler periods in milliseconds.
type TimingConfig struct {
	FastPeriodMs      int64 `yaml:"fast_period_ms"`
	StatusPeriodMs    int64 `yaml:"status_period_ms"`
	FaultPeriodMs     int64 `yaml:"fault_period_ms"`
	HeartbeatPeriodMs int64 `yaml:"heartbeat_period_ms"`
}

type DoorConfig struct {
	AutoLockEnabled  bool   `yaml:"auto_lock_enabled"`
	AutoLockSpeedKmh uint16 `yaml:"auto_lock_speed_kmh"`
}

type LightingConfig struct {
	OnThreshold     uint8 `yaml:"on_threshold"`
	OffThreshold    uint8 `yaml:"off_threshold"`
	SensorTimeoutMs int64 `yaml:"sensor_timeout_ms"`
}

type TurnSignalConfig struct {
	TurnOnMs     int64 `yaml:"turn_on_ms"`
	TurnOffMs    int64 `yaml:"turn_off_ms"`
	HazardOnMs   int64 `yaml:"hazard_on_ms"`
	HazardOffMs  int64 `yaml:"hazard_off_ms"`
	IdleCancelMs int64 `yaml:"idle_cancel_ms"`
}

type FaultConfig struct {
	Capacity int `yaml:"capacity"`
}

type HardwareConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CAN: CANConfig{
			Interface: "can0",
			RxBuffer:  64,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Enabled: false,
		},
		Web: WebConfig{
			ListenAddr: ":8090",
			Enabled:    false,
		},
		Timing: TimingConfig{
			FastPeriodMs:      10,
			StatusPeriodMs:    100,
			FaultPeriodMs:     500,
			HeartbeatPeriodMs: 1000,
		},
		Door: DoorConfig{
			AutoLockEnabled:  true,
			AutoLockSpeedKmh: door.DefaultAutoLockSpeedKmh,
		},
		Lighting: LightingConfig{
			OnThreshold:     lighting.DefaultOnThreshold,
			OffThreshold:    lighting.DefaultOffThreshold,
			SensorTimeoutMs: lighting.DefaultSensorTimeoutMs,
		},
		TurnSignal: TurnSignalConfig{
			TurnOnMs:     turnsignal.DefaultTurnOnMs,
			TurnOffMs:    turnsignal.DefaultTurnOffMs,
			HazardOnMs:   turnsignal.DefaultHazardOnMs,
			HazardOffMs:  turnsignal.DefaultHazardOffMs,
			IdleCancelMs: turnsignal.DefaultIdleCancelMs,
		},
		Fault: FaultConfig{
			Capacity: fault.DefaultCapacity,
		},
		Hardware: HardwareConfig{
			Enabled: false,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults; a malformed or inconsistent file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CAN.Interface == "" {
		return fmt.Errorf("can.interface must not be empty")
	}
	if c.Lighting.OnThreshold >= c.Lighting.OffThreshold {
		return fmt.Errorf("lighting on threshold %d must be below off threshold %d",
			c.Lighting.OnThreshold, c.Lighting.OffThreshold)
	}
	if c.Timing.FastPeriodMs <= 0 || c.Timing.StatusPeriodMs <= 0 ||
		c.Timing.FaultPeriodMs <= 0 || c.Timing.HeartbeatPeriodMs <= 0 {
		return fmt.Errorf("scheduler periods must be positive")
	}
	if c.Fault.Capacity <= 0 {
		return fmt.Errorf("fault.capacity must be positive")
	}
	return nil
}
