package reconciler

import (
	"time"

	"github.com/google/uuid"

	"saft-reconciliation-service/internal/aggregate"
	"saft-reconciliation-service/internal/ledger"
	"saft-reconciliation-service/internal/models"
	"saft-reconciliation-service/internal/registry"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// Dataset is one imported trial balance with its vouchers and the indexes
// derived from it. It is immutable once activated.
type Dataset struct {
	ID           string
	ActivatedAt  time.Time
	TrialBalance *models.TrialBalance
	Vouchers     []models.CostVoucher
	Index        *aggregate.RangeIndex
	Prefix       *aggregate.PrefixSumHelper
}

// Session owns the registry access and the single active dataset of an
// application run. Activating a dataset discards the previous one.
//
// A Session is not safe for concurrent use; at most one import or analysis
// may be in flight at a time.
type Session struct {
	config       *Config
	lookup       RegistryLookup
	cache        *registry.Cache
	builder      *ledger.Builder
	preprocessor *DataPreprocessor
	active       *Dataset
	logger       logger.Logger
}

// NewSession creates a Session using lookup for registry access. A nil
// lookup disables the registry comparison.
func NewSession(config *Config, lookup RegistryLookup, log logger.Logger) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfiguration, errors.CodeInvalidConfig, "invalid analysis configuration")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Session{
		config:       config,
		lookup:       lookup,
		builder:      ledger.NewBuilder(log),
		preprocessor: NewDataPreprocessor(nil, log),
		logger:       log.WithComponent("session"),
	}, nil
}

// OpenSession creates a Session that owns a registry cache and client built
// from the given settings. Close releases the cache.
func OpenSession(config *Config, clientConfig registry.ClientConfig, cacheOptions registry.CacheOptions, log logger.Logger) (*Session, error) {
	if err := clientConfig.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	cache := registry.OpenCache(cacheOptions, log)
	session, err := NewSession(config, registry.NewClient(clientConfig, cache, log), log)
	if err != nil {
		cache.Close()
		return nil, err
	}
	session.cache = cache
	return session, nil
}

// Config returns the analysis configuration
func (s *Session) Config() *Config {
	return s.config
}

// Lookup returns the registry access, nil when disabled
func (s *Session) Lookup() RegistryLookup {
	return s.lookup
}

// Import builds a dataset from the request tables, preprocesses it and
// makes it the active dataset.
func (s *Session) Import(req *Request) (*Dataset, *PreprocessingStats, error) {
	if req == nil {
		return nil, nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	if req.TrialBalance == nil {
		return nil, nil, errors.ValidationError(errors.CodeMissingField, "trial_balance", nil, nil)
	}

	tb := s.builder.Build(req.TrialBalance)
	var vouchers []models.CostVoucher
	if req.Vouchers != nil {
		vouchers = s.builder.BuildVouchers(req.Vouchers)
	}

	tb, tbStats := s.preprocessor.PreprocessTrialBalance(tb)
	vouchers, voucherStats := s.preprocessor.PreprocessVouchers(vouchers)
	stats := tbStats.Merge(voucherStats)

	return s.Activate(tb, vouchers), stats, nil
}

// Activate makes tb and vouchers the active dataset and builds its indexes
func (s *Session) Activate(tb *models.TrialBalance, vouchers []models.CostVoucher) *Dataset {
	if tb == nil {
		tb = models.NewTrialBalance(nil)
	}
	if s.active != nil {
		s.logger.WithField("dataset_id", s.active.ID).Debug("Discarding previous dataset")
	}

	dataset := &Dataset{
		ID:           uuid.NewString(),
		ActivatedAt:  time.Now(),
		TrialBalance: tb,
		Vouchers:     vouchers,
		Index:        aggregate.NewRangeIndex(tb),
		Prefix:       aggregate.NewPrefixSumHelper(),
	}
	s.active = dataset

	s.logger.WithFields(logger.Fields{
		"dataset_id": dataset.ID,
		"accounts":   tb.Len(),
		"indexed":    dataset.Index.Len(),
		"vouchers":   len(vouchers),
	}).Info("Dataset activated")
	return dataset
}

// Active returns the active dataset
func (s *Session) Active() (*Dataset, error) {
	if s.active == nil {
		return nil, errors.AnalysisError(errors.CodeNoDataset, "analysis", nil)
	}
	return s.active, nil
}

// Close drops the active dataset and releases an owned cache
func (s *Session) Close() error {
	s.active = nil
	if s.cache != nil {
		err := s.cache.Close()
		s.cache = nil
		return err
	}
	return nil
}
