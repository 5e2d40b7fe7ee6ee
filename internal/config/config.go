package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Хранилища состояния.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	MaxUploadMB  int
	LogFile      string

	Store       string
	DataDir     string
	BackupKeep  int
	DatabaseURL string

	CRMFeedURLs  []string
	PromFeedURLs []string
	FeedTimeout  time.Duration

	SaveDebounce    time.Duration
	DefaultPageSize int
}

func Load() Config {
	return Config{
		Host:         getenv("HOST", "127.0.0.1"),
		Port:         getint("PORT", 8082),
		AllowOrigins: getlist("ALLOW_ORIGINS", "*"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		MaxUploadMB:  getint("MAX_UPLOAD_MB", 100),
		LogFile:      getenv("LOG_FILE", "logs/pricing-service.log"),

		Store:       strings.ToLower(getenv("STORE", StoreFile)),
		DataDir:     getenv("DATA_DIR", "data"),
		BackupKeep:  getint("BACKUP_KEEP", 10),
		DatabaseURL: getenv("DATABASE_URL", ""),

		CRMFeedURLs:  getlist("CRM_FEED_URLS", ""),
		PromFeedURLs: getlist("PROM_FEED_URLS", ""),
		FeedTimeout:  getduration("FEED_TIMEOUT", 30*time.Second),

		SaveDebounce:    getduration("SAVE_DEBOUNCE", 100*time.Millisecond),
		DefaultPageSize: getint("DEFAULT_PAGE_SIZE", 50),
	}
}

// Validate проверяет сочетания, которые нельзя поправить дефолтом.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: bad PORT %d", c.Port)
	}
	return nil
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	n, err := strconv.Atoi(getenv(k, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// getduration понимает и "30s", и просто число секунд.
func getduration(k string, def time.Duration) time.Duration {
	v := getenv(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func getlist(k, def string) []string {
	var out []string
	for _, s := range strings.Split(getenv(k, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
