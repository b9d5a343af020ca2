// Package config loads aisight settings from a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete aisight configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Audio    AudioConfig    `yaml:"audio"`
	Haptics  HapticsConfig  `yaml:"haptics"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
}

// CameraConfig contains camera settings.
type CameraConfig struct {
	Device   int `yaml:"device"`
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	FPS      int `yaml:"fps"`
	Rotation int `yaml:"rotation"` // clockwise correction: 0, 90, 180, 270
	// PermissionDevice must be readable before the camera is bound. Empty
	// means the capture device node on Linux; "none" skips the check.
	PermissionDevice string `yaml:"permission_device"`
	// TorchOn and TorchOff are command lines driving the flashlight in
	// money mode. Empty means the camera has no torch.
	TorchOn  string `yaml:"torch_on"`
	TorchOff string `yaml:"torch_off"`
}

// DetectorConfig contains inference service settings.
type DetectorConfig struct {
	Command         string        `yaml:"command"`
	Script          string        `yaml:"script"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	Door            ModelConfig   `yaml:"door"`
	Money           ModelConfig   `yaml:"money"`
}

// ModelConfig defines the model bundle for one mode.
type ModelConfig struct {
	Model         string  `yaml:"model"`
	Labels        string  `yaml:"labels"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// FeedbackConfig contains cue and announcement settings.
type FeedbackConfig struct {
	Cooldown     time.Duration `yaml:"cooldown"`
	TapWindow    time.Duration `yaml:"tap_window"`
	TapThreshold int           `yaml:"tap_threshold"`
	Unit         string        `yaml:"unit"`       // appended to spoken totals
	ViewWidth    float64       `yaml:"view_width"` // 0 means normalized coordinates
}

// AudioConfig contains playback and speech commands.
type AudioConfig struct {
	Player string            `yaml:"player"`
	Cues   map[string]string `yaml:"cues"` // cue name -> sound file
	TTS    string            `yaml:"tts"`
	Voice  string            `yaml:"voice"`
}

// HapticsConfig contains MQTT settings for the wearable.
type HapticsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig contains database settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dbPath := "aisight.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".aisight", "aisight.db")
	}

	return &Config{
		LogLevel: "info",
		Camera: CameraConfig{
			Width:  1280,
			Height: 960,
			FPS:    15,
		},
		Detector: DetectorConfig{
			Command:         "python3",
			Script:          "models/detect.py",
			IdleTimeout:     30 * time.Second,
			ResponseTimeout: 5 * time.Second,
			Door: ModelConfig{
				Model:         "models/door.tflite",
				Labels:        "models/door_labels.txt",
				MinConfidence: 0.5,
			},
			Money: ModelConfig{
				Model:         "models/money.tflite",
				Labels:        "models/money_labels.txt",
				MinConfidence: 0.5,
			},
		},
		Feedback: FeedbackConfig{
			Cooldown:     4 * time.Second,
			TapWindow:    time.Second,
			TapThreshold: 3,
			Unit:         "dinars",
		},
		Audio: AudioConfig{
			Player: "paplay",
			Cues: map[string]string{
				"searching": "sounds/searching.wav",
				"acquired":  "sounds/acquired.wav",
				"left":      "sounds/left.wav",
				"right":     "sounds/right.wav",
				"ahead":     "sounds/ahead.wav",
			},
			TTS:   "espeak-ng",
			Voice: "ar",
		},
		Haptics: HapticsConfig{
			Broker:   "tcp://localhost:1883",
			Topic:    "aisight/haptics",
			ClientID: "aisight",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Path: dbPath,
		},
	}
}

// Load reads a YAML configuration file over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Camera.PermissionDevice = permissionDevice(cfg.Camera, runtime.GOOS)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.LogLevel = envOrDefault("AISIGHT_LOG_LEVEL", cfg.LogLevel)
	if cfg.Camera.Device, err = envOrDefaultInt("AISIGHT_CAMERA_DEVICE", cfg.Camera.Device); err != nil {
		return err
	}
	if cfg.Camera.Rotation, err = envOrDefaultInt("AISIGHT_CAMERA_ROTATION", cfg.Camera.Rotation); err != nil {
		return err
	}
	cfg.Camera.PermissionDevice = envOrDefault("AISIGHT_PERMISSION_DEVICE", cfg.Camera.PermissionDevice)
	cfg.Detector.Command = envOrDefault("AISIGHT_DETECTOR_COMMAND", cfg.Detector.Command)
	cfg.Detector.Script = envOrDefault("AISIGHT_DETECTOR_SCRIPT", cfg.Detector.Script)
	if cfg.Detector.ResponseTimeout, err = envOrDefaultDuration("AISIGHT_DETECTOR_TIMEOUT", cfg.Detector.ResponseTimeout); err != nil {
		return err
	}
	if cfg.Feedback.Cooldown, err = envOrDefaultDuration("AISIGHT_COOLDOWN", cfg.Feedback.Cooldown); err != nil {
		return err
	}
	cfg.Feedback.Unit = envOrDefault("AISIGHT_UNIT", cfg.Feedback.Unit)
	cfg.Audio.Player = envOrDefault("AISIGHT_PLAYER", cfg.Audio.Player)
	cfg.Audio.TTS = envOrDefault("AISIGHT_TTS", cfg.Audio.TTS)
	cfg.Audio.Voice = envOrDefault("AISIGHT_VOICE", cfg.Audio.Voice)
	if cfg.Haptics.Enabled, err = envOrDefaultBool("AISIGHT_HAPTICS", cfg.Haptics.Enabled); err != nil {
		return err
	}
	cfg.Haptics.Broker = envOrDefault("AISIGHT_MQTT_BROKER", cfg.Haptics.Broker)
	cfg.Server.Addr = envOrDefault("AISIGHT_ADDR", cfg.Server.Addr)
	cfg.Store.Path = envOrDefault("AISIGHT_DB", cfg.Store.Path)
	return nil
}

// permissionDevice resolves the node checked before binding. An empty
// setting means the capture device itself on Linux; elsewhere, or with
// "none", the check is skipped.
func permissionDevice(c CameraConfig, goos string) string {
	switch c.PermissionDevice {
	case "none":
		return ""
	case "":
		if goos == "linux" {
			return fmt.Sprintf("/dev/video%d", c.Device)
		}
		return ""
	default:
		return c.PermissionDevice
	}
}

// Validate checks that a configuration is usable.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Camera.FPS <= 0 {
		errs = append(errs, errors.New("camera.fps must be positive"))
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		errs = append(errs, errors.New("camera.width and camera.height must be positive"))
	}
	if cfg.Camera.Rotation%90 != 0 {
		errs = append(errs, fmt.Errorf("camera.rotation %d is not a multiple of 90", cfg.Camera.Rotation))
	}
	for name, m := range map[string]ModelConfig{"door": cfg.Detector.Door, "money": cfg.Detector.Money} {
		if m.MinConfidence < 0 || m.MinConfidence > 1 {
			errs = append(errs, fmt.Errorf("detector.%s.min_confidence must be within [0, 1]", name))
		}
	}
	if cfg.Detector.ResponseTimeout <= 0 {
		errs = append(errs, errors.New("detector.response_timeout must be positive"))
	}
	if cfg.Feedback.Cooldown <= 0 {
		errs = append(errs, errors.New("feedback.cooldown must be positive"))
	}
	if cfg.Feedback.TapWindow <= 0 {
		errs = append(errs, errors.New("feedback.tap_window must be positive"))
	}
	if cfg.Feedback.TapThreshold < 2 {
		errs = append(errs, errors.New("feedback.tap_threshold must be at least 2"))
	}
	if cfg.Feedback.ViewWidth < 0 {
		errs = append(errs, errors.New("feedback.view_width must not be negative"))
	}
	if cfg.Haptics.Enabled && (cfg.Haptics.Broker == "" || cfg.Haptics.Topic == "") {
		errs = append(errs, errors.New("haptics.broker and haptics.topic are required when haptics are enabled"))
	}
	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envOrDefaultBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
