package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

// Database drivers accepted by DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	Bounds       domain.Bounds
	RepairLatin1 bool

	// Relational store. DBDriver "none" disables persistence.
	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	// Kafka publishing. Empty KafkaBrokers disables it.
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// MetricsTextfile is where run metrics are written in Prometheus text
	// format. Empty disables the file.
	MetricsTextfile string
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables that are already set win. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	bounds, err := parseBounds()
	if err != nil {
		return nil, err
	}

	repairLatin1, err := parseBool("TEXT_REPAIR_LATIN1", false)
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		LogLevel:     sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		Bounds:       bounds,
		RepairLatin1: repairLatin1,

		DBDriver:    defaultDriver(),
		DatabaseURL: postgresURL(),
		SQLitePath:  sharedcfg.EnvOrDefault("SQLITE_PATH", "farm_survey.db"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "farm-survey-records"),
		BatchSize:    batchSize,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite, DriverNone:
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want postgres, sqlite or none", cfg.DBDriver)
	}
	if cfg.DBDriver == DriverSQLite && cfg.SQLitePath == "" {
		return nil, errors.New("DB_DRIVER is sqlite but SQLITE_PATH is empty")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// PersistenceEnabled reports whether a relational store is configured.
func (c *Config) PersistenceEnabled() bool { return c.DBDriver != DriverNone }

// PublishEnabled reports whether Kafka publishing is configured.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// defaultDriver picks postgres when any connection setting is present.
func defaultDriver() string {
	if v := os.Getenv("DB_DRIVER"); v != "" {
		return v
	}
	if os.Getenv("DATABASE_URL") != "" || os.Getenv("PG_HOST") != "" {
		return DriverPostgres
	}
	return DriverNone
}

// postgresURL returns DATABASE_URL, or a URL assembled from the PG_* variables.
func postgresURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	u := url.URL{
		Scheme: "postgres",
		User: url.UserPassword(
			sharedcfg.EnvOrDefault("PG_USER", "postgres"),
			os.Getenv("PG_PASSWORD"),
		),
		Host: sharedcfg.EnvOrDefault("PG_HOST", "localhost") + ":" + sharedcfg.EnvOrDefault("PG_PORT", "5432"),
		Path: "/" + sharedcfg.EnvOrDefault("PG_DB", "fincas"),
	}
	q := url.Values{}
	q.Set("sslmode", sharedcfg.EnvOrDefault("PG_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func parseBounds() (domain.Bounds, error) {
	def := domain.ElSalvador
	var b domain.Bounds
	var err error
	if b.LatMin, err = parseFloat("BOUNDS_LAT_MIN", def.LatMin); err != nil {
		return b, err
	}
	if b.LatMax, err = parseFloat("BOUNDS_LAT_MAX", def.LatMax); err != nil {
		return b, err
	}
	if b.LonMin, err = parseFloat("BOUNDS_LON_MIN", def.LonMin); err != nil {
		return b, err
	}
	if b.LonMax, err = parseFloat("BOUNDS_LON_MAX", def.LonMax); err != nil {
		return b, err
	}
	if b.LatMin >= b.LatMax {
		return b, errors.New("BOUNDS_LAT_MIN must be less than BOUNDS_LAT_MAX")
	}
	if b.LonMin >= b.LonMax {
		return b, errors.New("BOUNDS_LON_MIN must be less than BOUNDS_LON_MAX")
	}
	return b, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
