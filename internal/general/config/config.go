package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"geotrack/internal/domain/tracking"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GEOTRACK_DATABASE_HOST.
const EnvPrefix = "GEOTRACK"

type Config struct {
	Database     Database     `mapstructure:"database"`
	RabbitMQ     RabbitMQ     `mapstructure:"rabbitmq"`
	Services     Services     `mapstructure:"services"`
	JWT          JWT          `mapstructure:"jwt"`
	Tracking     Tracking     `mapstructure:"tracking"`
	Notification Notification `mapstructure:"notification"`
	Location     Location     `mapstructure:"location"`
	Samples      Samples      `mapstructure:"samples"`
}

type Database struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password" validate:"required_if=Enabled true"`
	Name     string `mapstructure:"database" validate:"required_if=Enabled true"`
	SSLMode  string `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

type RabbitMQ struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password" validate:"required_if=Enabled true"`
	VHost    string `mapstructure:"vhost"`
	Prefetch int    `mapstructure:"prefetch" validate:"min=1"`
}

type Services struct {
	TrackerServicePort int `mapstructure:"tracker_service" validate:"min=1,max=65535"`
}

type JWT struct {
	SecretKey string `mapstructure:"secret_key" validate:"required"`
}

type Tracking struct {
	IntervalMillis        int64  `mapstructure:"interval_ms" validate:"gt=0"`
	FastestIntervalMillis int64  `mapstructure:"fastest_interval_ms" validate:"gt=0,ltefield=IntervalMillis"`
	Priority              string `mapstructure:"priority" validate:"required"`
}

type Notification struct {
	Backend      string `mapstructure:"backend" validate:"oneof=dbus log"`
	AppName      string `mapstructure:"app_name" validate:"required"`
	CategoryID   string `mapstructure:"category_id" validate:"required"`
	CategoryName string `mapstructure:"category_name" validate:"required"`
	Importance   string `mapstructure:"importance" validate:"oneof=low default high"`
	Title        string `mapstructure:"title" validate:"required"`
	Body         string `mapstructure:"body"`
	Icon         string `mapstructure:"icon"`
}

type Location struct {
	Provider          string  `mapstructure:"provider" validate:"oneof=simulated"`
	PermissionGranted bool    `mapstructure:"permission_granted"`
	RouteFile         string  `mapstructure:"route_file"`
	StartLatitude     float64 `mapstructure:"start_latitude" validate:"min=-90,max=90"`
	StartLongitude    float64 `mapstructure:"start_longitude" validate:"min=-180,max=180"`
}

type Samples struct {
	QueueSize int `mapstructure:"queue_size" validate:"min=1"`
}

// Subscription converts the tracking section into the domain request shape.
func (c *Config) Subscription() (tracking.SubscriptionConfig, error) {
	priority, err := tracking.ParsePriority(c.Tracking.Priority)
	if err != nil {
		return tracking.SubscriptionConfig{}, fmt.Errorf("tracking.priority: %w", err)
	}
	cfg := tracking.SubscriptionConfig{
		IntervalMillis:        c.Tracking.IntervalMillis,
		FastestIntervalMillis: c.Tracking.FastestIntervalMillis,
		Priority:              priority,
	}
	return cfg, cfg.Validate()
}

// LoadFromFile loads config from a YAML file, applies defaults and environment overrides,
// and validates the result. A missing file is not an error: defaults and env are used.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.JWT.SecretKey == "" {
		cfg.JWT.SecretKey = randomSecret()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for every key so env overrides are picked up on Unmarshal.
func applyDefaults(v *viper.Viper) {
	sub := tracking.DefaultSubscriptionConfig()

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.sslmode", "disable")

	// RabbitMQ
	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "")
	v.SetDefault("rabbitmq.password", "")
	v.SetDefault("rabbitmq.vhost", "/")
	v.SetDefault("rabbitmq.prefetch", 8)

	// Services
	v.SetDefault("services.tracker_service", 3010)

	v.SetDefault("jwt.secret_key", "")

	// Tracking
	v.SetDefault("tracking.interval_ms", sub.IntervalMillis)
	v.SetDefault("tracking.fastest_interval_ms", sub.FastestIntervalMillis)
	v.SetDefault("tracking.priority", sub.Priority.String())

	// Notification
	v.SetDefault("notification.backend", "log")
	v.SetDefault("notification.app_name", "geotrack")
	v.SetDefault("notification.category_id", "location_service_channel")
	v.SetDefault("notification.category_name", "Location Service Channel")
	v.SetDefault("notification.importance", "low")
	v.SetDefault("notification.title", "Location Service")
	v.SetDefault("notification.body", "Tracking location in the background")
	v.SetDefault("notification.icon", "ic_notification")

	// Location
	v.SetDefault("location.provider", "simulated")
	v.SetDefault("location.permission_granted", true)
	v.SetDefault("location.route_file", "")
	v.SetDefault("location.start_latitude", 43.238949)
	v.SetDefault("location.start_longitude", 76.889709)

	v.SetDefault("samples.queue_size", 64)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validate checks required fields and basic ranges, collecting every problem.
func (c *Config) validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config.")), fe.Tag()))
		}
	}

	if _, err := tracking.ParsePriority(c.Tracking.Priority); err != nil {
		problems = append(problems, "tracking.priority must be one of high-accuracy, balanced, low-power, passive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func randomSecret() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		// fallback: time-based bytes
		key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	}
	return base64.StdEncoding.EncodeToString(key)
}
