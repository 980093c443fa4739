package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Admin    AdminConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Forecast ForecastConfig
	Engine   EngineConfig
	Tracing  TracingConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogFormat      string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type AdminConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	DataSource  string
	DataDir     string
	CacheDir    string
	ArtifactDir string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	InsightsTTLSeconds int
}

// StorageConfig selects the S3-compatible backend used to mirror model
// artifacts and to fetch raw order exports.
type StorageConfig struct {
	Provider  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

type ForecastConfig struct {
	TestSize       float64
	Seed           int64
	SelectK        int
	Booster        string
	MinHistoryDays int
}

type EngineConfig struct {
	WindowDays   int
	LeadTimeDays int
	SafetyFactor float64
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

type DriveConfig struct {
	CredentialsFile string
	FolderPath      string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		setDefaults(v)
		v.AutomaticEnv()

		instance = fromViper(v)

		ensureDir(instance.App.CacheDir)
		ensureDir(instance.App.ArtifactDir)
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("ADMIN_PORT", "8081")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "freshflow")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DATA_SOURCE", "csv")
	v.SetDefault("APP_DATA_DIR", "./data")
	v.SetDefault("APP_CACHE_DIR", "./data/cache")
	v.SetDefault("APP_ARTIFACT_DIR", "./models")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_INSIGHTS_TTL_SECONDS", 300)
	v.SetDefault("STORAGE_PROVIDER", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_PREFIX", "models/")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("FORECAST_TEST_SIZE", 0.2)
	v.SetDefault("FORECAST_SEED", 42)
	v.SetDefault("FORECAST_SELECT_K", 10)
	v.SetDefault("FORECAST_BOOSTER", "gbt")
	v.SetDefault("FORECAST_MIN_HISTORY_DAYS", 5)
	v.SetDefault("ENGINE_WINDOW_DAYS", 14)
	v.SetDefault("ENGINE_LEAD_TIME_DAYS", 3)
	v.SetDefault("ENGINE_SAFETY_FACTOR", 1.2)
	v.SetDefault("TRACING_ENDPOINT", "")
	v.SetDefault("TRACING_SERVICE_NAME", "freshflow")
	v.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	v.SetDefault("DRIVE_FOLDER_PATH", "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			LogFormat:      v.GetString("LOG_FORMAT"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Admin: AdminConfig{
			Port: v.GetString("ADMIN_PORT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			DataSource:  v.GetString("DATA_SOURCE"),
			DataDir:     v.GetString("APP_DATA_DIR"),
			CacheDir:    v.GetString("APP_CACHE_DIR"),
			ArtifactDir: v.GetString("APP_ARTIFACT_DIR"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			InsightsTTLSeconds: v.GetInt("CACHE_INSIGHTS_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Provider:  v.GetString("STORAGE_PROVIDER"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Forecast: ForecastConfig{
			TestSize:       v.GetFloat64("FORECAST_TEST_SIZE"),
			Seed:           v.GetInt64("FORECAST_SEED"),
			SelectK:        v.GetInt("FORECAST_SELECT_K"),
			Booster:        v.GetString("FORECAST_BOOSTER"),
			MinHistoryDays: v.GetInt("FORECAST_MIN_HISTORY_DAYS"),
		},
		Engine: EngineConfig{
			WindowDays:   v.GetInt("ENGINE_WINDOW_DAYS"),
			LeadTimeDays: v.GetInt("ENGINE_LEAD_TIME_DAYS"),
			SafetyFactor: v.GetFloat64("ENGINE_SAFETY_FACTOR"),
		},
		Tracing: TracingConfig{
			Endpoint:    v.GetString("TRACING_ENDPOINT"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
		},
		Drive: DriveConfig{
			CredentialsFile: v.GetString("DRIVE_CREDENTIALS_FILE"),
			FolderPath:      v.GetString("DRIVE_FOLDER_PATH"),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
