package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path on top of the struct defaults, applies
// .env and environment overrides and validates the result. A missing file
// or .env is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Exchange.APIKey, "BINANCE_API_KEY")
	setString(&cfg.Exchange.SecretKey, "BINANCE_SECRET_KEY")

	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := EnvtoInt(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.Database.Port = port
	}

	if symbols := splitList(os.Getenv("TRADING_SYMBOLS")); len(symbols) > 0 {
		for i := range symbols {
			symbols[i] = strings.ToUpper(symbols[i])
		}
		cfg.Scanner.Symbols = symbols
	}
	if v := os.Getenv("WATCHLIST_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid WATCHLIST_ENABLED: %w", err)
		}
		cfg.Scanner.Watchlist.Enabled = enabled
	}
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Notify.Kafka.Brokers = brokers
	}
	setString(&cfg.Notify.WebhookURL, "WEBHOOK_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	return nil
}

// Validate runs the struct tag rules
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.StructCtx(context.Background(), c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DatabaseEnabled reports whether trades persist to Postgres
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != ""
}

func EnvtoInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
