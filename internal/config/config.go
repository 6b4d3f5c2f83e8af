package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Save     SaveConfig
	Realtime RealtimeConfig
	Resolver ResolverConfig
	Backup   BackupConfig
}

type AppConfig struct {
	Port                string
	Environment         string
	LogFilePath         string
	RealtimeLogFilePath string
	CorsAllowedOrigins  string
	NatsURL             string
	StoragePath         string
	DocStoreURL         string
	DocStoreToken       string
}

type SaveConfig struct {
	// DebounceDelay is the quiet period after the last edit before a
	// save fires.
	DebounceDelay time.Duration
	SaveTimeout   time.Duration
	RetryBase     time.Duration
	RetryCap      time.Duration
	MaxRetries    int
}

type RealtimeConfig struct {
	Subject string
	// HealthWindow is how long the channel may stay silent while
	// believed connected before a reconnect is forced.
	HealthWindow         time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// ResolverConfig holds the conflict-decision thresholds. These are
// empirically chosen trade-offs between false conflict prompts and
// silent data loss, which is exactly why they are configuration and not
// constants.
type ResolverConfig struct {
	NewDocumentAge       time.Duration
	RecentlyOpenedWindow time.Duration
	ClearlyNewerGap      time.Duration
	JitterTolerance      time.Duration
	SimilarityCutoff     float64
	SimilarityPrefixLen  int
}

type BackupConfig struct {
	Retention  time.Duration
	GCInterval time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3900"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/sync.log"),
			RealtimeLogFilePath: getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:             getEnv("NATS_URL", "nats://localhost:4222"),
			StoragePath:         getEnv("STORAGE_PATH", "sync-engine.db"),
			DocStoreURL:         getEnv("DOC_STORE_URL", "http://localhost:8080"),
			DocStoreToken:       getEnv("DOC_STORE_TOKEN", ""),
		},
		Save: SaveConfig{
			DebounceDelay: getEnvAsDuration("SAVE_DEBOUNCE_DELAY", 2*time.Second),
			SaveTimeout:   getEnvAsDuration("SAVE_TIMEOUT", 10*time.Second),
			RetryBase:     getEnvAsDuration("SAVE_RETRY_BASE", 1*time.Second),
			RetryCap:      getEnvAsDuration("SAVE_RETRY_CAP", 30*time.Second),
			MaxRetries:    getEnvAsInt("SAVE_MAX_RETRIES", 5),
		},
		Realtime: RealtimeConfig{
			Subject:              getEnv("REALTIME_SUBJECT", "documents.>"),
			HealthWindow:         getEnvAsDuration("REALTIME_HEALTH_WINDOW", 90*time.Second),
			ReconnectDelay:       getEnvAsDuration("REALTIME_RECONNECT_DELAY", 5*time.Second),
			MaxReconnectAttempts: getEnvAsInt("REALTIME_MAX_RECONNECT_ATTEMPTS", 5),
		},
		Resolver: ResolverConfig{
			NewDocumentAge:       getEnvAsDuration("RESOLVER_NEW_DOCUMENT_AGE", 15*time.Second),
			RecentlyOpenedWindow: getEnvAsDuration("RESOLVER_RECENTLY_OPENED_WINDOW", 5*time.Second),
			ClearlyNewerGap:      getEnvAsDuration("RESOLVER_CLEARLY_NEWER_GAP", 60*time.Second),
			JitterTolerance:      getEnvAsDuration("RESOLVER_JITTER_TOLERANCE", 2*time.Second),
			SimilarityCutoff:     getEnvAsFloat("RESOLVER_SIMILARITY_CUTOFF", 0.8),
			SimilarityPrefixLen:  getEnvAsInt("RESOLVER_SIMILARITY_PREFIX_LEN", 256),
		},
		Backup: BackupConfig{
			Retention:  getEnvAsDuration("BACKUP_RETENTION", 7*24*time.Hour),
			GCInterval: getEnvAsDuration("BACKUP_GC_INTERVAL", 1*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
