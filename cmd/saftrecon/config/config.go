package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"saft-reconciliation-service/internal/parsers"
	"saft-reconciliation-service/internal/reconciler"
	"saft-reconciliation-service/internal/registry"
	"saft-reconciliation-service/internal/reporter"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// EnvPrefix prefixes environment overrides, e.g. SAFTRECON_REGISTRY_TIMEOUT
const EnvPrefix = "SAFTRECON"

// Setting keys
const (
	KeyAccountsURL             = "registry.accounts_url"
	KeyEntityURL               = "registry.entity_url"
	KeyTimeout                 = "registry.timeout"
	KeyRetries                 = "registry.retries"
	KeyBackoffMin              = "registry.backoff_min"
	KeyBackoffMax              = "registry.backoff_max"
	KeyCacheDir                = "cache.dir"
	KeyCacheTTL                = "cache.ttl"
	KeyCacheDurable            = "cache.durable"
	KeyMinimumObservations     = "vat.minimum_observations"
	KeyCapitalizationThreshold = "assets.capitalization_threshold"
	KeyPerVoucher              = "assets.per_voucher"
	KeyNetReversals            = "assets.net_reversals"
	KeyTolerance               = "comparison.tolerance"
	KeyLogLevel                = "log.level"
	KeyLogFormat               = "log.format"
)

// SetDefaults registers the default value of every setting on v
func SetDefaults(v *viper.Viper) {
	client := registry.DefaultClientConfig()
	analysis := reconciler.DefaultConfig()

	v.SetDefault(KeyAccountsURL, client.AccountsURL)
	v.SetDefault(KeyEntityURL, client.EntityURL)
	v.SetDefault(KeyTimeout, client.Timeout)
	v.SetDefault(KeyRetries, client.RetryMax)
	v.SetDefault(KeyBackoffMin, client.BackoffMin)
	v.SetDefault(KeyBackoffMax, client.BackoffMax)
	v.SetDefault(KeyCacheDir, "")
	v.SetDefault(KeyCacheTTL, registry.DefaultTTL)
	v.SetDefault(KeyCacheDurable, true)
	v.SetDefault(KeyMinimumObservations, analysis.MinimumObservations)
	v.SetDefault(KeyCapitalizationThreshold, analysis.CapitalizationThreshold.String())
	v.SetDefault(KeyPerVoucher, false)
	v.SetDefault(KeyNetReversals, false)
	v.SetDefault(KeyTolerance, analysis.Tolerance.String())
	v.SetDefault(KeyLogLevel, string(logger.WarnLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
}

// CacheSettings controls the registry response cache
type CacheSettings struct {
	Dir     string
	TTL     time.Duration
	Durable bool
}

// Settings is the typed view of the viper configuration
type Settings struct {
	Registry registry.ClientConfig
	Cache    CacheSettings
	Analysis reconciler.Config
	Log      logger.Config
}

// Load reads the settings from v and validates them
func Load(v *viper.Viper) (*Settings, error) {
	threshold, err := decimalSetting(v, KeyCapitalizationThreshold)
	if err != nil {
		return nil, err
	}
	tolerance, err := decimalSetting(v, KeyTolerance)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Registry: registry.ClientConfig{
			AccountsURL: v.GetString(KeyAccountsURL),
			EntityURL:   v.GetString(KeyEntityURL),
			Timeout:     v.GetDuration(KeyTimeout),
			RetryMax:    v.GetInt(KeyRetries),
			BackoffMin:  v.GetDuration(KeyBackoffMin),
			BackoffMax:  v.GetDuration(KeyBackoffMax),
		},
		Cache: CacheSettings{
			Dir:     v.GetString(KeyCacheDir),
			TTL:     v.GetDuration(KeyCacheTTL),
			Durable: v.GetBool(KeyCacheDurable),
		},
		Analysis: reconciler.Config{
			MinimumObservations:      v.GetInt(KeyMinimumObservations),
			CapitalizationThreshold:  threshold,
			PerVoucherCapitalization: v.GetBool(KeyPerVoucher),
			NetReversals:             v.GetBool(KeyNetReversals),
			Tolerance:                tolerance,
		},
		Log: logger.Config{
			Level:  logger.Level(strings.ToLower(v.GetString(KeyLogLevel))),
			Format: logger.Format(strings.ToLower(v.GetString(KeyLogFormat))),
			Output: logger.StderrOutput,
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decimalSetting(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.ConfigurationError(errors.CodeInvalidConfig, key, raw, err)
	}
	return d, nil
}

// Validate checks every section of the settings
func (s *Settings) Validate() error {
	if err := s.Registry.Validate(); err != nil {
		return err
	}
	if s.Cache.TTL <= 0 {
		return errors.ConfigurationError(errors.CodeOutOfRange, KeyCacheTTL, s.Cache.TTL, nil)
	}
	if err := s.Analysis.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "analysis", nil, err)
	}
	if err := s.Log.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", nil, err)
	}
	return nil
}

// CacheOptions returns the registry cache options
func (s *Settings) CacheOptions() registry.CacheOptions {
	return registry.CacheOptions{
		Dir:     s.Cache.Dir,
		TTL:     s.Cache.TTL,
		Durable: s.Cache.Durable,
	}
}

// ReconcilerConfig returns a copy of the analysis configuration
func (s *Settings) ReconcilerConfig() *reconciler.Config {
	config := s.Analysis
	return &config
}

// LoggerConfig returns the logger configuration, raised to debug when
// verbose is set
func (s *Settings) LoggerConfig(verbose bool) *logger.Config {
	config := s.Log
	if verbose {
		config.Level = logger.DebugLevel
	}
	return &config
}

// CreateParseConfig creates the CSV parse configuration for the given
// encoding and delimiter flags. An empty delimiter is sniffed per file.
func CreateParseConfig(encoding, delimiter string) (*parsers.ParseConfig, error) {
	config := parsers.DefaultParseConfig()
	config.Encoding = encoding

	switch delimiter {
	case "":
	case `\t`, "tab":
		config.Delimiter = '\t'
	default:
		if utf8.RuneCountInString(delimiter) != 1 {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "delimiter", delimiter,
				fmt.Errorf("delimiter must be a single character"))
		}
		r, _ := utf8.DecodeRuneInString(delimiter)
		config.Delimiter = r
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified
// output format
func CreateReportConfig(format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))

	switch config.Format {
	case reporter.FormatConsole:
		config.IncludePreprocessing = true
	case reporter.FormatJSON:
		config.IncludePreprocessing = true
		config.MaxListItems = 0
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ';'
		config.IncludePreprocessing = false
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, nil).
			WithSuggestion("Valid formats: console, json, csv")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report", nil, err)
	}
	return config, nil
}
