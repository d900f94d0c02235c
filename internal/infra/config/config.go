package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"
	_ "time/tzdata" // Zoneinfo for TIMEZONE in minimal images

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver    string
	DatabaseURL       string
	QueryTimeout      time.Duration
	Retention         retention.Config
	LogLevel          string
	Environment       string
	HTTPAddr          string // Empty disables the admin HTTP server
	TelegramToken     string
	AdminTelegramID   int64
	NotifyOnSuccess   bool
	HealthCheckDelay  time.Duration // Delay of the one-off health check after start
	ConfigFile        string
	ConfigFileEntries int // Number of keys read from ConfigFile, for startup logging
}

// source resolves a key from the environment first, then from the optional file.
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return s.file[key]
}

// Load reads configuration from environment variables, a .env file and an
// optional YAML file named by CONFIG_FILE. Environment variables win over the
// file. Malformed values are reported together as a *retention.ConfigurationError;
// missing required values are reported by Validate.
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{ConfigFile: os.Getenv("CONFIG_FILE")}
	src := source{}
	if cfg.ConfigFile != "" {
		entries, err := readFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		src.file = entries
		cfg.ConfigFileEntries = len(entries)
	}

	invalid := &retention.ConfigurationError{}
	intVal := func(key string, def int) int {
		raw := strings.TrimSpace(src.get(key))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			invalid.Invalid = append(invalid.Invalid, fmt.Sprintf("%s=%q is not an integer", key, raw))
			return def
		}
		return n
	}
	millis := func(key string, def int) time.Duration {
		return time.Duration(intVal(key, def)) * time.Millisecond
	}
	str := func(key, def string) string {
		if v := strings.TrimSpace(src.get(key)); v != "" {
			return v
		}
		return def
	}

	cfg.DatabaseDriver = strings.ToLower(str("DB_DRIVER", "postgres"))
	cfg.DatabaseURL = str("DATABASE_URL", "")
	cfg.QueryTimeout = millis("QUERY_TIMEOUT_MS", 30000)

	cfg.Retention = retention.Config{
		Table:           str("TABLE_NAME", ""),
		DateColumn:      str("DATE_COLUMN", ""),
		IDColumn:        str("ID_COLUMN", "id"),
		RetentionMonths: intVal("RETENTION_MONTHS", 3),
		BatchSize:       intVal("BATCH_SIZE", 1000),
		BatchDelay:      millis("BATCH_DELAY_MS", 5000),
		MaxRetries:      intVal("MAX_RETRIES", 3),
		RetryBaseDelay:  millis("RETRY_BASE_DELAY_MS", 1000),
		Schedule:        str("CRON_SCHEDULE", "0 10 * * *"), // Default: 10:00 AM daily
		Timezone:        str("TIMEZONE", "UTC"),
	}

	cfg.LogLevel = strings.ToLower(str("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(str("ENVIRONMENT", "development"))

	// HTTP_ADDR set to an empty string explicitly disables the server.
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(v)
	} else {
		cfg.HTTPAddr = str("HTTP_ADDR", ":8080")
	}

	cfg.TelegramToken = str("TELEGRAM_TOKEN", "")
	if raw := str("ADMIN_TELEGRAM_ID", ""); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			invalid.Invalid = append(invalid.Invalid, fmt.Sprintf("ADMIN_TELEGRAM_ID=%q is not an integer", raw))
		}
		cfg.AdminTelegramID = id
	}
	if raw := str("NOTIFY_ON_SUCCESS", "false"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			invalid.Invalid = append(invalid.Invalid, fmt.Sprintf("NOTIFY_ON_SUCCESS=%q is not a boolean", raw))
		}
		cfg.NotifyOnSuccess = b
	}
	cfg.HealthCheckDelay = millis("HEALTH_CHECK_DELAY_MS", 10000)

	if !invalid.Empty() {
		return nil, invalid
	}
	return cfg, nil
}

// Validate reports every missing or invalid required setting at once.
func (c *AppConfig) Validate() error {
	cerr := &retention.ConfigurationError{}
	if c.DatabaseURL == "" {
		cerr.Missing = append(cerr.Missing, "DATABASE_URL")
	}
	if err := c.Retention.Validate(); err != nil {
		if rerr, ok := err.(*retention.ConfigurationError); ok {
			cerr.Missing = append(cerr.Missing, rerr.Missing...)
			cerr.Invalid = append(cerr.Invalid, rerr.Invalid...)
		} else {
			cerr.Invalid = append(cerr.Invalid, err.Error())
		}
	}
	if c.QueryTimeout < 0 {
		cerr.Invalid = append(cerr.Invalid, "QUERY_TIMEOUT_MS must not be negative")
	}
	if cerr.Empty() {
		return nil
	}
	return cerr
}

// TelegramEnabled reports whether the Telegram surface is configured.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.AdminTelegramID != 0
}

// readFile parses a flat YAML mapping of configuration keys to scalars.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &retention.ConfigurationError{Invalid: []string{fmt.Sprintf("CONFIG_FILE %s: %v", path, err)}}
	}
	entries := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		entries[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return entries, nil
}
