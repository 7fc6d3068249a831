// Package config loads crmextract settings from a YAML or JSON file, an
// optional .env file and CRMEXTRACT_* environment variables.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"crmextract/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g. CRMEXTRACT_STORAGE_DSN.
const EnvPrefix = "CRMEXTRACT"

type Config struct {
	LogLevel  string         `json:"log_level" yaml:"log_level"`
	Selectors string         `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	Storage   *StorageConfig `json:"storage" yaml:"storage"`
	Notify    *NotifyConfig  `json:"notify" yaml:"notify"`
	Metrics   *MetricsConfig `json:"metrics" yaml:"metrics"`
	Server    *ServerConfig  `json:"server" yaml:"server"`
	Nats      *NatsConfig    `json:"nats" yaml:"nats"`
	Page      *PageConfig    `json:"page" yaml:"page"`
}

// StorageConfig selects the key-value backend and the key holding the
// snapshot.
type StorageConfig struct {
	Kind  string `json:"kind" yaml:"kind"`
	DSN   string `json:"dsn" yaml:"dsn"`
	Table string `json:"table" yaml:"table"`
	Key   string `json:"key" yaml:"key"`
}

type NotifyConfig struct {
	DismissAfter time.Duration `json:"dismiss_after" yaml:"dismiss_after"`
}

// MetricsConfig selects a metrics backend: "none" or "datadog".
type MetricsConfig struct {
	Backend    string        `json:"backend" yaml:"backend"`
	JobName    string        `json:"job_name" yaml:"job_name"`
	Tags       []string      `json:"tags" yaml:"tags"`
	FlushEvery time.Duration `json:"flush_every" yaml:"flush_every"`
}

type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

// NatsConfig enables the NATS trigger transport when Endpoint is set.
type NatsConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Subject  string `json:"subject" yaml:"subject"`
}

// PageConfig points "serve" at a saved snapshot used until a page is pushed.
type PageConfig struct {
	Path string `json:"path" yaml:"path"`
	URL  string `json:"url" yaml:"url"`
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Storage: &StorageConfig{
			Kind:  "sqlite",
			DSN:   "crmextract.db",
			Table: storage.DefaultTable,
			Key:   "crm_data",
		},
		Notify:  &NotifyConfig{DismissAfter: 4 * time.Second},
		Metrics: &MetricsConfig{Backend: "none", JobName: "crmextract", FlushEvery: time.Minute},
		Server:  &ServerConfig{Port: 3000},
		Nats:    &NatsConfig{Subject: "crm.extract"},
		Page:    &PageConfig{},
	}
}

// setDefaults registers every key with viper so environment variables can
// override keys the file does not mention.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("selectors", cfg.Selectors)
	v.SetDefault("storage.kind", cfg.Storage.Kind)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.table", cfg.Storage.Table)
	v.SetDefault("storage.key", cfg.Storage.Key)
	v.SetDefault("notify.dismiss_after", cfg.Notify.DismissAfter)
	v.SetDefault("metrics.backend", cfg.Metrics.Backend)
	v.SetDefault("metrics.job_name", cfg.Metrics.JobName)
	v.SetDefault("metrics.tags", cfg.Metrics.Tags)
	v.SetDefault("metrics.flush_every", cfg.Metrics.FlushEvery)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("nats.endpoint", cfg.Nats.Endpoint)
	v.SetDefault("nats.subject", cfg.Nats.Subject)
	v.SetDefault("page.path", cfg.Page.Path)
	v.SetDefault("page.url", cfg.Page.URL)
}

// Load reads configFilePath when given, otherwise only defaults and the
// environment apply. A .env file next to the config file, or in the working
// directory, is loaded first; variables already set win.
func Load(configFilePath string) (*Config, error) {
	if configFilePath == "" {
		if err := loadDotEnv(".env"); err != nil {
			return nil, err
		}
		return decode(newViper(), "yaml")
	}
	return TryLoadFromDisk(configFilePath)
}

// TryLoadFromDisk reads a YAML or JSON config file. The decoder matches keys
// on the struct tag named after the file type.
func TryLoadFromDisk(configFilePath string) (*Config, error) {
	if _, err := os.Stat(configFilePath); err != nil {
		return nil, errors.Wrap(err, "config file")
	}
	dir, file := filepath.Split(configFilePath)
	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	fileType := strings.TrimPrefix(filepath.Ext(file), ".")
	tag := fileType
	if tag == "yml" {
		tag = "yaml"
	}

	v := newViper()
	v.SetConfigFile(configFilePath)
	v.SetConfigType(fileType)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", configFilePath)
	}
	return decode(v, tag)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, NewDefaultConfig())
	return v
}

func decode(v *viper.Viper, tag string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = tag
	}); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() []error {
	var errs = make([]error, 0)

	if c.Storage == nil {
		errs = append(errs, errors.New("missing storage config"))
	} else {
		errs = append(errs, c.Storage.Validate()...)
	}
	if c.Server != nil {
		if err := IsValidPort(c.Server.Port); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Notify != nil && c.Notify.DismissAfter < 0 {
		errs = append(errs, errors.Errorf("notify.dismiss_after must not be negative, got %s", c.Notify.DismissAfter))
	}
	if c.Metrics != nil {
		switch c.Metrics.Backend {
		case "", "none", "datadog":
		default:
			errs = append(errs, errors.Errorf("unknown metrics backend %q", c.Metrics.Backend))
		}
	}
	if c.Nats != nil && c.Nats.Endpoint != "" && strings.TrimSpace(c.Nats.Subject) == "" {
		errs = append(errs, errors.New("nats.subject is required when nats.endpoint is set"))
	}
	return errs
}

func (s *StorageConfig) Validate() []error {
	var errs = make([]error, 0)
	if strings.TrimSpace(s.Kind) == "" {
		errs = append(errs, errors.New("storage.kind is required"))
	}
	if s.Kind != "memory" && strings.TrimSpace(s.DSN) == "" {
		errs = append(errs, errors.Errorf("storage.dsn is required for kind %q", s.Kind))
	}
	if s.Table != "" {
		if _, err := storage.TableName(s.Table); err != nil {
			errs = append(errs, errors.Wrap(err, "storage.table"))
		}
	}
	if strings.TrimSpace(s.Key) == "" {
		errs = append(errs, errors.New("storage.key is required"))
	}
	return errs
}

// IsValidPort accepts anything cast can turn into an int in [0, 65535].
func IsValidPort[T int | int32 | int64 | uint | uint32 | uint64 | string](port T) error {
	p, err := cast.ToIntE(port)
	if err != nil {
		return errors.Wrap(err, "port")
	}
	if p >= 0 && p <= 65535 {
		return nil
	}
	return errors.Errorf("%d is not a valid port [0-65535]", p)
}

// KV converts the section into the storage package's Config.
func (s *StorageConfig) KV() storage.Config {
	return storage.Config{Kind: s.Kind, DSN: s.DSN, Table: s.Table}
}

// String renders the config for debug logs with the DSN redacted.
func (c *Config) String() string {
	dsn := ""
	if c.Storage != nil && c.Storage.DSN != "" {
		dsn = "<redacted>"
	}
	kind := ""
	if c.Storage != nil {
		kind = c.Storage.Kind
	}
	return fmt.Sprintf("storage=%s dsn=%s selectors=%q log_level=%s", kind, dsn, c.Selectors, c.LogLevel)
}
