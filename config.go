package hangoutstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the settings needed to open the hangout table.
type Config struct {
	TableName           string `yaml:"table_name" validate:"required"`
	Region              string `yaml:"region" validate:"required"`
	Endpoint            string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	BatchSize           int    `yaml:"batch_size" validate:"gte=1,lte=25"`
	MaxTransactItems    int    `yaml:"max_transact_items" validate:"gte=1,lte=100"`
	MaxPages            int    `yaml:"max_pages" validate:"gte=1"`
	LogLevel            string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LegacyTypeInference bool   `yaml:"legacy_type_inference"`
	StoreCursors        bool   `yaml:"store_cursors"`
	Breaker             bool   `yaml:"breaker"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		TableName:           "hangouts",
		Region:              "us-east-1",
		BatchSize:           MaxBatchSize,
		MaxTransactItems:    MaxTransactItems,
		MaxPages:            DefaultMaxPages,
		LogLevel:            "info",
		LegacyTypeInference: true,
	}
}

// LoadConfig builds a Config from the defaults, the YAML file at path when
// path is not empty, and HANGOUTS_* environment variables, in that order.
// The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(payload, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: config: %v", ErrInvalidInput, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
		}
		*dst = b
		return nil
	}

	str("HANGOUTS_TABLE_NAME", &c.TableName)
	str("HANGOUTS_REGION", &c.Region)
	str("HANGOUTS_ENDPOINT", &c.Endpoint)
	str("HANGOUTS_LOG_LEVEL", &c.LogLevel)
	c.LogLevel = strings.ToLower(c.LogLevel)

	if err := num("HANGOUTS_BATCH_SIZE", &c.BatchSize); err != nil {
		return err
	}
	if err := num("HANGOUTS_MAX_TRANSACT_ITEMS", &c.MaxTransactItems); err != nil {
		return err
	}
	if err := num("HANGOUTS_MAX_PAGES", &c.MaxPages); err != nil {
		return err
	}
	if err := flag("HANGOUTS_LEGACY_TYPE_INFERENCE", &c.LegacyTypeInference); err != nil {
		return err
	}
	if err := flag("HANGOUTS_STORE_CURSORS", &c.StoreCursors); err != nil {
		return err
	}
	return flag("HANGOUTS_BREAKER", &c.Breaker)
}

// NewTable returns a Table configured from c. Further options are applied
// after the configured values.
func (c Config) NewTable(logger *zap.Logger, opts ...func(*Table)) *Table {
	return NewTable(c.TableName, append([]func(*Table){func(t *Table) {
		t.BatchSize = c.BatchSize
		t.MaxTransactItems = c.MaxTransactItems
		t.MaxPages = c.MaxPages
		t.LegacyTypeInference = c.LegacyTypeInference
		t.StoreCursors = c.StoreCursors
		if logger != nil {
			t.Logger = logger
		}
	}}, opts...)...)
}

// NewLogger builds a production zap logger at the named level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %v", ErrInvalidInput, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
