package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "markerview.cfg.json"

// ViewConfig holds the defaults for newly created views.
type ViewConfig struct {
	MarkerTypes   []string `json:"markerTypes" mapstructure:"markerTypes"`
	DefaultWidth  float64  `json:"defaultWidth" mapstructure:"defaultWidth" validate:"gt=0"`
	DefaultHeight float64  `json:"defaultHeight" mapstructure:"defaultHeight" validate:"gt=0"`
}

// ExportConfig holds annotation file settings.
type ExportConfig struct {
	Compress bool `json:"compress" mapstructure:"compress"`
}

// ServerConfig holds websocket bridge settings.
type ServerConfig struct {
	Address      string        `json:"address" mapstructure:"address" validate:"required,hostname_port"`
	ReadLimit    int64         `json:"readLimit" mapstructure:"readLimit" validate:"gt=0"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"writeTimeout" validate:"gt=0"`
	SendBuffer   int           `json:"sendBuffer" mapstructure:"sendBuffer" validate:"gt=0"`
	// SaveDir receives annotation files saved by hosts. Empty disables saving.
	SaveDir string `json:"saveDir" mapstructure:"saveDir"`
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName" validate:"required"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout" validate:"gt=0"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds the GELF log sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address" validate:"required_if=Enabled true"`
}

// APIConfig holds the remote annotation store settings.
type APIConfig struct {
	URL     string        `json:"url" mapstructure:"url" validate:"omitempty,url"`
	APIKey  string        `json:"apiKey" mapstructure:"apiKey"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

var validate = validator.New()

// ErrNotFound is returned by Load when the config file does not exist.
var ErrNotFound = errors.New("config file not found")

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./markerview-logs")

	viper.SetDefault("view.markerTypes", []string{})
	viper.SetDefault("view.defaultWidth", 800)
	viper.SetDefault("view.defaultHeight", 600)

	viper.SetDefault("export.compress", false)

	viper.SetDefault("server.address", "localhost:8765")
	viper.SetDefault("server.readLimit", 1<<20)
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.sendBuffer", 64)
	viper.SetDefault("server.saveDir", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "markerview")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("api.url", "")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.timeout", "30s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the file is missing and ErrNotFound is returned.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w in %s", ErrNotFound, configDir)
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetViewConfig returns the validated view defaults.
func GetViewConfig() (ViewConfig, error) {
	cfg := ViewConfig{
		MarkerTypes:   viper.GetStringSlice("view.markerTypes"),
		DefaultWidth:  viper.GetFloat64("view.defaultWidth"),
		DefaultHeight: viper.GetFloat64("view.defaultHeight"),
	}
	return cfg, check("view", cfg)
}

// GetExportConfig returns the export settings.
func GetExportConfig() ExportConfig {
	return ExportConfig{Compress: viper.GetBool("export.compress")}
}

// GetServerConfig returns the validated websocket bridge settings.
func GetServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		Address:      viper.GetString("server.address"),
		ReadLimit:    viper.GetInt64("server.readLimit"),
		WriteTimeout: viper.GetDuration("server.writeTimeout"),
		SendBuffer:   viper.GetInt("server.sendBuffer"),
		SaveDir:      viper.GetString("server.saveDir"),
	}
	return cfg, check("server", cfg)
}

// GetOTelConfig returns the validated OpenTelemetry settings.
func GetOTelConfig() (OTelConfig, error) {
	cfg := OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
	return cfg, check("otel", cfg)
}

// GetGraylogConfig returns the validated GELF sink settings.
func GetGraylogConfig() (GraylogConfig, error) {
	cfg := GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
	return cfg, check("graylog", cfg)
}

// GetAPIConfig returns the validated annotation store settings.
func GetAPIConfig() (APIConfig, error) {
	cfg := APIConfig{
		URL:     viper.GetString("api.url"),
		APIKey:  viper.GetString("api.apiKey"),
		Timeout: viper.GetDuration("api.timeout"),
	}
	return cfg, check("api", cfg)
}

func check(section string, cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid %s config: %w", section, err)
	}
	return nil
}
