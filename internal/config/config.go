package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/parent-watch/internal/geo"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Tracker   TrackerConfig   `yaml:"tracker" mapstructure:"tracker"`
	Feed      FeedConfig      `yaml:"feed" mapstructure:"feed"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Zones     []geo.ZoneSpec  `yaml:"zones" mapstructure:"zones"`
	ZonesFile string          `yaml:"zones_file" mapstructure:"zones_file"`
	Subjects  []SubjectConfig `yaml:"subjects" mapstructure:"subjects"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the dashboard API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StoreConfig configures the alert history backend. An empty driver
// disables history.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// TrackerConfig configures the polling loop.
type TrackerConfig struct {
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	NotifyTimeout time.Duration `yaml:"notify_timeout" mapstructure:"notify_timeout"`
	Language      string        `yaml:"language" mapstructure:"language"`
}

// FeedConfig selects and configures the position source.
type FeedConfig struct {
	Mode    string        `yaml:"mode" mapstructure:"mode"` // scripted | http
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Token   string        `yaml:"token" mapstructure:"token"`
	RPS     float64       `yaml:"rps" mapstructure:"rps"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries int           `yaml:"retries" mapstructure:"retries"`
}

// NotifyConfig configures outbound warnings.
type NotifyConfig struct {
	WebhookURL       string        `yaml:"webhook_url" mapstructure:"webhook_url"`
	Authorization    string        `yaml:"authorization" mapstructure:"authorization"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries          int           `yaml:"retries" mapstructure:"retries"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// SubjectConfig names a tracked subject, the Safe zone it is expected at,
// and the waypoints replayed by the scripted feed.
type SubjectConfig struct {
	Name         string           `yaml:"name" mapstructure:"name"`
	ExpectedZone string           `yaml:"expected_zone" mapstructure:"expected_zone"`
	Path         []geo.Coordinate `yaml:"path" mapstructure:"path"`
}

// Feed modes.
const (
	FeedScripted = "scripted"
	FeedHTTP     = "http"
)

func coord(lat, lng float64) map[string]any {
	return map[string]any{"latitude": lat, "longitude": lng}
}

// Load reads configuration from config.yaml, PARENTWATCH_* environment
// variables and built-in defaults. The defaults describe a runnable demo:
// two children in Belgrade with a school and two internet cafes.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARENTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "parent-watch.db")
	v.SetDefault("tracker.interval", "5s")
	v.SetDefault("tracker.notify_timeout", "10s")
	v.SetDefault("tracker.language", "en")
	v.SetDefault("feed.mode", FeedScripted)
	v.SetDefault("feed.rps", 5.0)
	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.retries", 3)
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.retries", 3)
	v.SetDefault("notify.breaker_threshold", 5)
	v.SetDefault("notify.breaker_cooldown", "30s")
	v.SetDefault("zones", []map[string]any{
		{"name": "School", "latitude": 44.7966, "longitude": 20.4589, "kind": "safe", "threshold_meters": geo.DefaultThresholdMeters},
		{"name": "Internet Klub", "latitude": 44.7766, "longitude": 20.4389, "kind": "restricted", "threshold_meters": geo.DefaultThresholdMeters},
		{"name": "Internet Klub 2", "latitude": 44.77, "longitude": 20.435, "kind": "restricted", "threshold_meters": geo.DefaultThresholdMeters},
	})
	v.SetDefault("subjects", []map[string]any{
		{
			"name":          "Son",
			"expected_zone": "School",
			"path": []map[string]any{
				coord(44.7866, 20.4489),
				coord(44.784, 20.446),
				coord(44.778, 20.44),
				coord(44.772, 20.436),
				coord(44.77, 20.435),
			},
		},
		{
			"name":          "Daughter",
			"expected_zone": "School",
			"path": []map[string]any{
				coord(44.787, 20.4495),
				coord(44.79, 20.452),
				coord(44.793, 20.455),
				coord(44.796, 20.458),
				coord(44.7966, 20.4589),
			},
		},
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// ZoneSpecs returns the configured zones, preferring zones_file when set.
func (c *Config) ZoneSpecs() ([]geo.ZoneSpec, error) {
	if c.ZonesFile == "" {
		return c.Zones, nil
	}
	return geo.LoadZonesFile(c.ZonesFile)
}

// Classifier builds a zone classifier from the configured zones.
func (c *Config) Classifier() (*geo.Classifier, error) {
	specs, err := c.ZoneSpecs()
	if err != nil {
		return nil, err
	}
	zones, err := geo.ZonesFromSpecs(specs)
	if err != nil {
		return nil, eris.Wrap(err, "config: zones")
	}
	return geo.NewClassifier(zones)
}

// Validate checks the fields a command mode depends on. Supported modes are
// "watch", "serve" and "zones".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "watch", "serve":
		problems = append(problems, c.validateTracking()...)
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	case "zones":
		problems = append(problems, c.validateZones()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateZones() []string {
	if _, err := c.Classifier(); err != nil {
		return []string{err.Error()}
	}
	return nil
}

func (c *Config) validateTracking() []string {
	var problems []string

	specs, err := c.ZoneSpecs()
	if err != nil {
		return []string{err.Error()}
	}
	kinds := make(map[string]string, len(specs))
	for _, s := range specs {
		kinds[s.Name] = s.Kind
	}
	problems = append(problems, c.validateZones()...)

	if len(c.Subjects) == 0 {
		problems = append(problems, "at least one subject is required")
	}
	for _, s := range c.Subjects {
		if s.Name == "" {
			problems = append(problems, "subjects[].name is required")
			continue
		}
		kind, ok := kinds[s.ExpectedZone]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("subject %s: expected zone %q is not configured", s.Name, s.ExpectedZone))
		case !isSafe(kind):
			problems = append(problems, fmt.Sprintf("subject %s: expected zone %q must be safe", s.Name, s.ExpectedZone))
		}
		for i, p := range s.Path {
			if err := p.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("subject %s: path[%d]: %v", s.Name, i, err))
			}
		}
	}

	switch c.Feed.Mode {
	case FeedScripted:
		for _, s := range c.Subjects {
			if s.Name != "" && len(s.Path) == 0 {
				problems = append(problems, fmt.Sprintf("subject %s: scripted feed requires a path", s.Name))
			}
		}
	case FeedHTTP:
		if c.Feed.BaseURL == "" {
			problems = append(problems, "feed.base_url is required for http feed")
		}
	default:
		problems = append(problems, fmt.Sprintf("feed.mode must be %s or %s", FeedScripted, FeedHTTP))
	}

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
		if c.Store.Driver != "" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Tracker.Interval < 0 {
		problems = append(problems, "tracker.interval must be >= 0")
	}
	return problems
}

func isSafe(kind string) bool {
	k, err := geo.ParseKind(kind)
	return err == nil && k == geo.Safe
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
