package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	SourceDirectory = "directory"
	SourceUDP       = "udp"

	PublishPerSlot = "per-slot"
	PublishBatch   = "batch"
)

type Config struct {
	Port         int
	LogDirectory string
	LogLevel     string
	DatabasePath string
	APIToken     string

	FrameSource string // directory or udp
	SourceDir   string
	CamerasFile string
	UDPPort     int
	FrameDelay  time.Duration // Pauza między klatkami przy odtwarzaniu katalogu

	DetectorURL         string
	DetectorTimeout     time.Duration
	ConfidenceThreshold float64

	SlotCapacity   int     // Maksymalna liczba detekcji na klatkę
	MatchThreshold float64 // Próg IoU dopasowania miejsca

	PublishURL         string
	ParkingSpotID      string
	PublishEventType   string
	PublishMode        string
	PublishTimeout     time.Duration
	PublishConcurrency int

	OverlayInterval      int // Co którą klatkę renderować podgląd (0 = wyłączone)
	OverlayDirectory     string
	OverlayBufferLimit   int
	OverlayFlushInterval time.Duration

	// CameraNames maps UDP sender IPs to camera identifiers.
	CameraNames map[string]string
	Cameras     []Camera
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8080),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabasePath: getEnv("DB_PATH", filepath.Join(".", "data", "parking.db")),
		APIToken:     getEnv("API_TOKEN", ""),

		FrameSource: getEnv("FRAME_SOURCE", SourceDirectory),
		SourceDir:   getEnv("SOURCE_DIR", filepath.Join(".", "frames")),
		CamerasFile: getEnv("CAMERAS_FILE", ""),
		UDPPort:     getEnvAsInt("UDP_PORT", 8081),
		FrameDelay:  getEnvAsDuration("FRAME_DELAY", 50*time.Millisecond),

		DetectorURL:         getEnv("DETECTOR_URL", "http://localhost:8000/detect"),
		DetectorTimeout:     getEnvAsDuration("DETECTOR_TIMEOUT", 30*time.Second),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.3),

		SlotCapacity:   getEnvAsInt("SLOT_CAPACITY", 55),
		MatchThreshold: getEnvAsFloat("MATCH_THRESHOLD", 0.5),

		PublishURL:         getEnv("PUBLISH_URL", "http://localhost:3000/api/slot-details/event"),
		ParkingSpotID:      getEnv("PARKING_SPOT_ID", ""),
		PublishEventType:   getEnv("PUBLISH_EVENT_TYPE", "SLOT_UPDATE"),
		PublishMode:        getEnv("PUBLISH_MODE", PublishPerSlot),
		PublishTimeout:     getEnvAsDuration("PUBLISH_TIMEOUT", 5*time.Second),
		PublishConcurrency: getEnvAsInt("PUBLISH_CONCURRENCY", 1),

		OverlayInterval:      getEnvAsInt("OVERLAY_INTERVAL", 0),
		OverlayDirectory:     getEnv("OVERLAY_DIR", filepath.Join(".", "overlays")),
		OverlayBufferLimit:   getEnvAsInt("OVERLAY_BUFFER_LIMIT", 10),
		OverlayFlushInterval: getEnvAsDuration("OVERLAY_FLUSH_INTERVAL", 30*time.Second),

		CameraNames: make(map[string]string),
	}

	return cfg
}

// LoadCameras merges the cameras file into the configuration.
func (c *Config) LoadCameras() error {
	if c.CamerasFile == "" {
		return nil
	}

	cameras, err := LoadCamerasFile(c.CamerasFile)
	if err != nil {
		return err
	}

	c.Cameras = cameras
	for _, cam := range cameras {
		if cam.UDPAddr != "" {
			c.CameraNames[cam.UDPAddr] = cam.ID
		}
	}
	return nil
}

// Validate checks the values the core relies on.
func (c *Config) Validate() error {
	if c.ParkingSpotID != "" {
		if _, err := uuid.Parse(c.ParkingSpotID); err != nil {
			return fmt.Errorf("%w: PARKING_SPOT_ID %q is not a UUID: %v", ErrInvalidConfig, c.ParkingSpotID, err)
		}
	}
	if c.SlotCapacity <= 0 {
		return fmt.Errorf("%w: SLOT_CAPACITY must be positive, got %d", ErrInvalidConfig, c.SlotCapacity)
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("%w: MATCH_THRESHOLD must be in (0,1], got %v", ErrInvalidConfig, c.MatchThreshold)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: CONFIDENCE_THRESHOLD must be in [0,1], got %v", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	switch c.FrameSource {
	case SourceDirectory, SourceUDP:
	default:
		return fmt.Errorf("%w: unknown FRAME_SOURCE %q", ErrInvalidConfig, c.FrameSource)
	}
	switch c.PublishMode {
	case PublishPerSlot, PublishBatch:
	default:
		return fmt.Errorf("%w: unknown PUBLISH_MODE %q", ErrInvalidConfig, c.PublishMode)
	}
	if c.PublishConcurrency <= 0 {
		return fmt.Errorf("%w: PUBLISH_CONCURRENCY must be positive, got %d", ErrInvalidConfig, c.PublishConcurrency)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("250ms") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
