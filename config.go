package main

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	EPD_WIDTH  = 250 // landscape, Waveshare 2.13" V4
	EPD_HEIGHT = 122

	BUTTON_RETURN_PIN = "GPIO6"  // feed pet / back
	BUTTON_ACTION_PIN = "GPIO13" // switch menu
	BUTTON_GO_PIN     = "GPIO19" // send message / menu action

	EPD_DC_PIN   = "GPIO25"
	EPD_CS_PIN   = "GPIO8"
	EPD_RST_PIN  = "GPIO17"
	EPD_BUSY_PIN = "GPIO24"
)

// Fixed layout rectangles, coordinated with fonts and sprite assets.
// Changing these requires matching asset updates.
var (
	dateRect      = rect(5, 5, 160, 18)
	clockRect     = rect(10, 25, 165, 64)
	spriteRect    = rect(176, 25, 64, 64)
	statsBarRect  = rect(0, 96, EPD_WIDTH, 14)
	hintsRect     = rect(0, 110, EPD_WIDTH, 12)
	separatorY    = 95
	headerTimeX   = 180
	msgListTopY   = 28
	msgLineHeight = 16
)

// Config holds everything loaded from the environment (.env) at startup.
type Config struct {
	DeviceName     string
	DeviceTimezone string

	DeviceIP   string
	RemoteIP   string
	APIPort    int
	TimeFormat int // 12 or 24

	PetName string
	PetType string

	DataDir   string
	AssetsDir string

	ClockUpdateInterval time.Duration
	PetUpdateInterval   time.Duration
	AnimationInterval   time.Duration
	ButtonThrottle      time.Duration
	ButtonDebounce      time.Duration
	LongPressThreshold  time.Duration

	FullRefreshCycles int
	FullRefreshTime   time.Duration

	HungerDecayRate    float64 // points per hour
	HappinessDecayRate float64

	DebugMode    bool
	MockHardware bool
}

func loadConfig(envPath string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("no env file at %s, using defaults: %v", envPath, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := Config{
		DeviceName:     envStr("DEVICE_NAME", "bunny_clock"),
		DeviceTimezone: envStr("DEVICE_TIMEZONE", "America/Mexico_City"),
		DeviceIP:       envStr("DEVICE_IP", "10.8.17.62"),
		RemoteIP:       envStr("REMOTE_DEVICE_IP", "10.8.17.114"),
		APIPort:        envInt("API_PORT", 5000),
		TimeFormat:     envInt("TIME_FORMAT", 24),

		PetName: envStr("PET_NAME", "Fluffy"),
		PetType: envStr("PET_TYPE", "bunny"),

		DataDir:   envStr("DATA_DIR", "data"),
		AssetsDir: envStr("ASSETS_DIR", "assets"),

		ClockUpdateInterval: envDuration("CLOCK_UPDATE_INTERVAL", 60*time.Second),
		PetUpdateInterval:   envDuration("PET_UPDATE_INTERVAL", time.Hour),
		AnimationInterval:   envDuration("ANIMATION_INTERVAL", 500*time.Millisecond),
		ButtonThrottle:      envDuration("BUTTON_THROTTLE", 300*time.Millisecond),
		ButtonDebounce:      envDuration("BUTTON_DEBOUNCE", 200*time.Millisecond),
		LongPressThreshold:  envDuration("BUTTON_LONG_PRESS", 2*time.Second),

		FullRefreshCycles: envInt("FULL_REFRESH_CYCLES", 10),
		FullRefreshTime:   envDuration("FULL_REFRESH_TIME", 300*time.Second),

		HungerDecayRate:    envFloat("HUNGER_DECAY_RATE", 1.0),
		HappinessDecayRate: envFloat("HAPPINESS_DECAY_RATE", 0.5),

		DebugMode:    envBool("DEBUG_MODE", false),
		MockHardware: envBool("MOCK_HARDWARE", false),
	}

	if cfg.TimeFormat != 12 && cfg.TimeFormat != 24 {
		return cfg, fmt.Errorf("TIME_FORMAT must be 12 or 24, got %d", cfg.TimeFormat)
	}
	if cfg.FullRefreshCycles < 1 {
		return cfg, fmt.Errorf("FULL_REFRESH_CYCLES must be >= 1, got %d", cfg.FullRefreshCycles)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return cfg, fmt.Errorf("creating data dir: %w", err)
	}

	return cfg, nil
}

// remoteURL builds a peer API URL, e.g. remoteURL(cfg, "/api/message").
func remoteURL(cfg Config, endpoint string) string {
	return fmt.Sprintf("http://%s:%d%s", cfg.RemoteIP, cfg.APIPort, endpoint)
}

func (c Config) fontPath(name string) string {
	return filepath.Join(c.AssetsDir, "fonts", name)
}

func (c Config) spriteDir() string {
	return filepath.Join(c.AssetsDir, "sprites")
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("bad value for %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("bad value for %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("bad value for %s=%q, using %v", key, v, def)
		return def
	}
	return b
}

// envDuration accepts either a Go duration string ("300ms") or a bare
// number of seconds, which is what the original .env files carried.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("bad value for %s=%q, using %v", key, v, def)
	return def
}

// rect builds an image.Rectangle from origin and size, which is how the
// layout table above reads in the asset documentation.
func rect(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
