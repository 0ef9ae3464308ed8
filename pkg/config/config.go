package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Solver      SolverConfig
	Generation  GenerationConfig
	Utilization UtilizationConfig
	Export      ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// SolverConfig describes how the external timetable solver is launched.
type SolverConfig struct {
	Command          string
	Script           string
	CheckScript      string
	Timeout          time.Duration
	MaxConcurrent    int
	DefaultAlgorithm string
	HealthCheck      bool

	// MinPreferenceCoverage is the share of teachers that must have submitted preferences. Zero disables the check.
	MinPreferenceCoverage float64
}

// GenerationConfig governs the asynchronous generation worker pool.
type GenerationConfig struct {
	Workers   int
	QueueSize int
	JobTTL    time.Duration
}

// ExportConfig shapes CSV downloads.
type ExportConfig struct {
	CSVDelimiter string
	CSVBOM       bool
}

// UtilizationConfig tunes caching of utilization reports.
type UtilizationConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		URL:      v.GetString("REDIS_URL"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	maxConcurrent := v.GetInt("SOLVER_MAX_CONCURRENT")
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	cfg.Solver = SolverConfig{
		Command:          v.GetString("SOLVER_COMMAND"),
		Script:           v.GetString("SOLVER_SCRIPT"),
		CheckScript:      v.GetString("SOLVER_CHECK_SCRIPT"),
		Timeout:          parseDuration(v.GetString("SOLVER_TIMEOUT"), 2*time.Minute),
		MaxConcurrent:    maxConcurrent,
		DefaultAlgorithm: v.GetString("SOLVER_DEFAULT_ALGORITHM"),
		HealthCheck:      v.GetBool("SOLVER_HEALTH_CHECK"),
	}
	if coverage := v.GetFloat64("SOLVER_MIN_PREFERENCE_COVERAGE"); coverage >= 0 && coverage <= 1 {
		cfg.Solver.MinPreferenceCoverage = coverage
	} else {
		cfg.Solver.MinPreferenceCoverage = 0.7
	}

	cfg.Generation = GenerationConfig{
		Workers:   v.GetInt("GENERATION_WORKERS"),
		QueueSize: v.GetInt("GENERATION_QUEUE_SIZE"),
		JobTTL:    parseDuration(v.GetString("GENERATION_JOB_TTL"), time.Hour),
	}

	cfg.Utilization = UtilizationConfig{
		CacheTTL: parseDuration(v.GetString("UTILIZATION_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Export = ExportConfig{
		CSVDelimiter: v.GetString("EXPORT_CSV_DELIMITER"),
		CSVBOM:       v.GetBool("EXPORT_CSV_BOM"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("SOLVER_COMMAND", "python3")
	v.SetDefault("SOLVER_SCRIPT", "./python_models/models/timetable_generator.py")
	v.SetDefault("SOLVER_CHECK_SCRIPT", "./python_models/utils/env_checker.py")
	v.SetDefault("SOLVER_TIMEOUT", "2m")
	v.SetDefault("SOLVER_MAX_CONCURRENT", 2)
	v.SetDefault("SOLVER_DEFAULT_ALGORITHM", "genetic")
	v.SetDefault("SOLVER_HEALTH_CHECK", true)
	v.SetDefault("SOLVER_MIN_PREFERENCE_COVERAGE", 0.7)

	v.SetDefault("GENERATION_WORKERS", 2)
	v.SetDefault("GENERATION_QUEUE_SIZE", 16)
	v.SetDefault("GENERATION_JOB_TTL", "1h")

	v.SetDefault("UTILIZATION_CACHE_TTL", "24h")

	v.SetDefault("EXPORT_CSV_DELIMITER", ",")
	v.SetDefault("EXPORT_CSV_BOM", false)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
