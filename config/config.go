package config

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	JitterNone         = "none"
	JitterFull         = "full"
	JitterEqual        = "equal"
	JitterDecorrelated = "decorrelated"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type ClientConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxAttempts          int     `mapstructure:"max_attempts"`
	BaseDelay            string  `mapstructure:"base_delay"`
	MaxDelay             string  `mapstructure:"max_delay"`
	Multiplier           float64 `mapstructure:"multiplier"`
	Jitter               string  `mapstructure:"jitter"`
	MaxElapsedTime       string  `mapstructure:"max_elapsed_time"`
	RetryableStatusCodes []int   `mapstructure:"retryable_status_codes"`
	RetryOnNetworkError  bool    `mapstructure:"retry_on_network_error"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	SuccessThreshold int    `mapstructure:"success_threshold"`
	OpenTimeout      string `mapstructure:"open_timeout"`
}

type ProbeConfig struct {
	Interval string `mapstructure:"interval"`
}

type TargetConfig struct {
	URL    string `mapstructure:"url"`
	Method string `mapstructure:"method"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Client         ClientConfig         `mapstructure:"client"`
	Retry          RetryConfig          `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Probe          ProbeConfig          `mapstructure:"probe"`
	Targets        []TargetConfig       `mapstructure:"targets"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":9090")
	viper.SetDefault("client.timeout", "10s")
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", "1s")
	viper.SetDefault("retry.max_delay", "30s")
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.jitter", JitterFull)
	viper.SetDefault("retry.max_elapsed_time", "2m")
	viper.SetDefault("retry.retryable_status_codes", []int{408, 429, 500, 502, 503, 504})
	viper.SetDefault("retry.retry_on_network_error", true)
	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("circuit_breaker.success_threshold", 1)
	viper.SetDefault("circuit_breaker.open_timeout", "30s")
	viper.SetDefault("probe.interval", "10s")
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Client,
			validation.By(func(value interface{}) error {
				cc, ok := value.(ClientConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ClientConfig")
				}
				if cc.BaseURL != "" {
					if err := validateServerURL(cc.BaseURL); err != nil {
						return err
					}
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Retry,
			validation.Required,
			validation.By(validateRetryConfig),
		),
		validation.Field(&c.CircuitBreaker,
			validation.Required,
			validation.By(validateCircuitBreakerConfig),
		),
		validation.Field(&c.Probe,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProbeConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProbeConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Targets,
			validation.Each(validation.By(validateTargetConfig)),
		),
	)
}

func validateRetryConfig(value interface{}) error {
	rc, ok := value.(RetryConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RetryConfig")
	}

	if err := validation.ValidateStruct(&rc,
		validation.Field(&rc.MaxAttempts, validation.Min(0)),
		validation.Field(&rc.BaseDelay, validation.Required, validation.By(validateDuration)),
		validation.Field(&rc.MaxDelay, validation.Required, validation.By(validateDuration)),
		validation.Field(&rc.Multiplier, validation.Required, validation.Min(1.0)),
		validation.Field(&rc.Jitter,
			validation.Required,
			validation.In(JitterNone, JitterFull, JitterEqual, JitterDecorrelated),
		),
		validation.Field(&rc.MaxElapsedTime, validation.By(validateOptionalDuration)),
	); err != nil {
		return err
	}

	for _, code := range rc.RetryableStatusCodes {
		if code < 100 || code > 599 {
			return validation.NewError("validation_invalid_status_code", "retryable status codes must be valid HTTP status codes")
		}
	}

	return nil
}

func validateCircuitBreakerConfig(value interface{}) error {
	cc, ok := value.(CircuitBreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
	}
	return validation.ValidateStruct(&cc,
		validation.Field(&cc.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&cc.SuccessThreshold, validation.Required, validation.Min(1)),
		validation.Field(&cc.OpenTimeout, validation.Required, validation.By(validateDuration)),
	)
}

func validateTargetConfig(value interface{}) error {
	target, ok := value.(TargetConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a TargetConfig")
	}

	if err := validateServerURL(target.URL); err != nil {
		return err
	}

	if target.Method != "" {
		switch target.Method {
		case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			return validation.NewError("validation_invalid_method", "method must be a supported HTTP method")
		}
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

// validateOptionalDuration accepts an empty string, meaning "unlimited".
func validateOptionalDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if durationStr == "" {
		return nil
	}

	return validateDuration(durationStr)
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "target URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
