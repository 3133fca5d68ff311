// Package conf loads and provides access to application settings.
// Settings come from a config.yaml resolved through viper, with defaults
// applied for every key so the binary runs without a config file.
package conf

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// LogConfig holds settings for a rotating file logger.
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to the log file
	MaxSize    int    // maximum size in megabytes before rotation
	MaxBackups int    // number of rotated files to keep
	MaxAge     int    // days to retain rotated files
}

// ClassifierConfig configures the generative AI classification provider.
type ClassifierConfig struct {
	Provider string        // classification provider, only "gemini" is supported
	APIKey   string        // provider API key
	Model    string        // model identifier
	Endpoint string        // provider base URL
	FailMode string        // "safe" to fail open, "escalate" to fail closed
	Timeout  time.Duration // per-request timeout
}

// BackendConfig points the monitor at the record/auth backend.
type BackendConfig struct {
	URL     string        // backend base URL, e.g. http://localhost:5000
	Timeout time.Duration // per-request timeout
}

// MonitorConfig configures the capture-and-poll sessions.
type MonitorConfig struct {
	Audio struct {
		Enabled  bool          // true to start an audio session
		Device   string        // capture device name, empty for system default
		Interval time.Duration // polling cadence for audio features
	}
	Video struct {
		Enabled  bool          // true to start a video session
		Source   string        // snapshot URL of the camera
		Interval time.Duration // polling cadence for frames
	}
}

// AnalysisConfig holds the server-side audio feature thresholds.
type AnalysisConfig struct {
	ViolenceThreshold float64 // average amplitude at or above which audio is VIOLENCE
	WeaponThreshold   float64 // average amplitude at or above which audio is WEAPON
}

// SecurityConfig holds auth/session settings for the web server.
type SecurityConfig struct {
	SessionSecret string // cookie signing secret, generated if empty
	SessionMaxAge int    // session lifetime in seconds
}

// AlertConfig configures outbound alert sinks.
type AlertConfig struct {
	MQTT struct {
		Enabled  bool
		Broker   string // e.g. tcp://localhost:1883
		Topic    string
		Username string
		Password string
		Retain   bool
	}
	Push struct {
		Enabled  bool
		URLs     []string      // shoutrrr service URLs
		MinLevel string        // lowest level that triggers a push, default VIOLENCE
		Timeout  time.Duration // send timeout
	}
}

// Settings is the root configuration object.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this SafeCity node, used as MQTT client ID and record source
		Log  LogConfig // main logging configuration
	}

	Classifier ClassifierConfig // generative AI classifier settings
	Backend    BackendConfig    // record/auth backend endpoint
	Monitor    MonitorConfig    // capture and polling settings
	Analysis   AnalysisConfig   // server-side audio thresholds
	Alert      AlertConfig      // alert sink settings

	WebServer struct {
		Enabled bool      // true to enable the backend web server
		Port    string    // port for the web server
		Log     LogConfig // web server logging configuration
	}

	Security SecurityConfig // session cookie settings

	Output struct {
		SQLite struct {
			Enabled bool   // true to use the sqlite store
			Path    string // path to sqlite database
		}
		MySQL struct {
			Enabled  bool // true to use the mysql store
			Username string
			Password string
			Database string
			Host     string
			Port     string
		}
	}
}

// Load reads the configuration into a fresh Settings instance.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file present, defaults apply.
	}

	// A missing session secret would leave cookies unsigned, generate one.
	if viper.GetString("security.sessionsecret") == "" {
		viper.Set("security.sessionsecret", GenerateRandomSecret())
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order: working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "safecity"))
	}
	return paths, nil
}

// GenerateRandomSecret returns a URL-safe random secret suitable for
// signing session cookies.
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// rand.Read only fails if the OS entropy source is broken
		panic(fmt.Sprintf("failed to generate random secret: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
