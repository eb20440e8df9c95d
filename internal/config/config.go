package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Config represents the main configuration for sehri.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Timezone   string           `toml:"timezone"` // IANA name; empty means the host zone
	Locale     string           `toml:"locale"`   // "en" or "bn"
	Location   LocationConfig   `toml:"location"`
	Schedule   ScheduleConfig   `toml:"schedule"`
	TimeSource TimeSourceConfig `toml:"time_source"`
	Store      StoreConfig      `toml:"store"`
	Encryption EncryptionConfig `toml:"encryption"`
	Notifier   NotifierConfig   `toml:"notifier"`
	Server     ServerConfig     `toml:"server"`
}

// LocationConfig holds the location preferences. Latitude and longitude are
// only used when both are non-zero.
type LocationConfig struct {
	UseLive    bool    `toml:"use_live"`
	Permission string  `toml:"permission"` // "granted", "denied" or "default"
	Latitude   float64 `toml:"latitude,omitempty"`
	Longitude  float64 `toml:"longitude,omitempty"`
	City       string  `toml:"city,omitempty"`
	PreciseURL string  `toml:"precise_url,omitempty"` // IP geolocation endpoint tried first
	CoarseURL  string  `toml:"coarse_url,omitempty"`  // fallback endpoint
}

// HasCoordinates reports whether manual coordinates are configured.
func (l LocationConfig) HasCoordinates() bool {
	return l.Latitude != 0 && l.Longitude != 0
}

// ScheduleConfig selects how timings are computed and displayed.
type ScheduleConfig struct {
	Method          int `toml:"method"`
	School          int `toml:"school"` // 0 Shafi, 1 Hanafi
	ImsakOffsetMin  int `toml:"imsak_offset_min"`
	ReminderLeadMin int `toml:"reminder_lead_min"`
	HijriAdjustment int `toml:"hijri_adjustment"`
}

// TimeSourceConfig configures the prayer-time API client.
type TimeSourceConfig struct {
	BaseURL    string `toml:"base_url"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// Timeout returns the request timeout as a duration.
func (c TimeSourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// StoreConfig represents configuration for the persistence backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type      string `toml:"type"` // "memory", "filesystem", "sqlite", "postgres" or "s3"
	Encrypted bool   `toml:"encrypted"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Dir string `toml:"dir,omitempty"`

	// SQLite-specific fields (only used when Type == "sqlite")
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// Postgres-specific fields (only used when Type == "postgres")
	PostgresDSN string `toml:"postgres_dsn,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for encrypted stores.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NotifierConfig represents configuration for reminder delivery.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type NotifierConfig struct {
	Type    string `toml:"type"` // "console", "telegram" or "mqtt"
	Vibrate bool   `toml:"vibrate"`

	// Telegram-specific fields. The token may come from SEHRI_TELEGRAM_TOKEN instead.
	TelegramToken  string `toml:"telegram_token,omitempty"`
	TelegramChatID int64  `toml:"telegram_chat_id,omitempty"`

	// MQTT-specific fields
	MQTTBroker   string `toml:"mqtt_broker,omitempty"`
	MQTTTopic    string `toml:"mqtt_topic,omitempty"`
	MQTTClientID string `toml:"mqtt_client_id,omitempty"`
}

// ServerConfig configures `sehri serve`.
type ServerConfig struct {
	Listen               string `toml:"listen"`
	RefreshCron          string `toml:"refresh_cron"`
	ConnectivityProbeSec int    `toml:"connectivity_probe_sec"`
	ProbeURL             string `toml:"probe_url,omitempty"`
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Locale:  "en",
		Location: LocationConfig{
			UseLive:    true,
			Permission: "granted",
			PreciseURL: "https://ipapi.co/json/",
			CoarseURL:  "http://ip-api.com/json/",
		},
		Schedule: ScheduleConfig{
			Method:          2,
			School:          1,
			ImsakOffsetMin:  19,
			ReminderLeadMin: 15,
		},
		TimeSource: TimeSourceConfig{
			BaseURL:    "https://api.aladhan.com/v1",
			TimeoutSec: 15,
		},
		Store: StoreConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(baseDir, "sehri.db"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "sehri.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "sehri.key"),
		},
		Notifier: NotifierConfig{Type: "console", Vibrate: true},
		Server: ServerConfig{
			Listen:               "127.0.0.1:8787",
			RefreshCron:          "5 0 * * *",
			ConnectivityProbeSec: 60,
			ProbeURL:             "https://api.aladhan.com/v1/status",
		},
	}
}

// Validate reports every problem found in the config.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			add("timezone %q: %w", c.Timezone, err)
		}
	}
	switch c.Locale {
	case "", "en", "bn":
	default:
		add("unknown locale: %q", c.Locale)
	}

	switch c.Location.Permission {
	case "", "granted", "denied", "default":
	default:
		add("unknown location permission: %q", c.Location.Permission)
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		add("latitude %v out of range", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		add("longitude %v out of range", c.Location.Longitude)
	}

	if c.Schedule.School != 0 && c.Schedule.School != 1 {
		add("school must be 0 or 1, got %d", c.Schedule.School)
	}
	if c.Schedule.Method < 0 {
		add("method must not be negative")
	}
	if c.Schedule.ImsakOffsetMin < 0 || c.Schedule.ReminderLeadMin < 0 {
		add("schedule offsets must not be negative")
	}

	switch c.Store.Type {
	case "memory":
	case "filesystem":
		if c.Store.Dir == "" {
			add("filesystem store requires dir to be set")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			add("sqlite store requires sqlite_path to be set")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			add("postgres store requires postgres_dsn to be set")
		}
	case "s3":
		if c.Store.S3Bucket == "" {
			add("s3 store requires s3_bucket to be set")
		}
	default:
		add("unknown store type: %q", c.Store.Type)
	}

	switch c.Encryption.Type {
	case "", "age", "test":
	default:
		add("unknown encryption type: %q", c.Encryption.Type)
	}

	switch c.Notifier.Type {
	case "console":
	case "telegram":
		if c.Notifier.TelegramChatID == 0 {
			add("telegram notifier requires telegram_chat_id to be set")
		}
	case "mqtt":
		if c.Notifier.MQTTBroker == "" || c.Notifier.MQTTTopic == "" {
			add("mqtt notifier requires mqtt_broker and mqtt_topic to be set")
		}
	default:
		add("unknown notifier type: %q", c.Notifier.Type)
	}

	if c.Server.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.Server.RefreshCron); err != nil {
			add("refresh_cron %q: %w", c.Server.RefreshCron, err)
		}
	}
	if c.Server.ConnectivityProbeSec < 0 {
		add("connectivity_probe_sec must not be negative")
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Save overwrites the config at path.
func Save(path string, cfg *Config) error {
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
