package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IngestConfig tunes the host ingest path. It is reloaded when the backing
// file changes.
type IngestConfig struct {
	LockTTL         time.Duration `mapstructure:"lockTTL"`
	LockWait        time.Duration `mapstructure:"lockWait"`
	ConflictRetries int           `mapstructure:"conflictRetries"`
	Workers         int           `mapstructure:"workers"`
	BatchSize       int64         `mapstructure:"batchSize"`
	BlockTimeout    time.Duration `mapstructure:"blockTimeout"`
	ClaimIdle       time.Duration `mapstructure:"claimIdle"`
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		LockTTL:         10 * time.Second,
		LockWait:        5 * time.Second,
		ConflictRetries: 3,
		Workers:         4,
		BatchSize:       16,
		BlockTimeout:    2 * time.Second,
		ClaimIdle:       time.Minute,
	}
}

type IngestConfigHolder struct {
	current atomic.Value // holds IngestConfig
}

// NewStaticIngestConfigHolder returns a holder that never reloads.
func NewStaticIngestConfigHolder(cfg IngestConfig) *IngestConfigHolder {
	holder := &IngestConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewIngestConfigHolder(log *zap.Logger) (*IngestConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.ingest")

	v := viper.New()

	v.SetConfigName("inventory")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/inventory")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultIngestConfig()
	v.SetDefault("ingest.lockTTL", defaults.LockTTL)
	v.SetDefault("ingest.lockWait", defaults.LockWait)
	v.SetDefault("ingest.conflictRetries", defaults.ConflictRetries)
	v.SetDefault("ingest.workers", defaults.Workers)
	v.SetDefault("ingest.batchSize", defaults.BatchSize)
	v.SetDefault("ingest.blockTimeout", defaults.BlockTimeout)
	v.SetDefault("ingest.claimIdle", defaults.ClaimIdle)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeIngestConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateIngestConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticIngestConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeIngestConfig(v)
		if err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateIngestConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// decodeIngestConfig goes through AllSettings so defaults fill keys the file omits.
func decodeIngestConfig(v *viper.Viper) (IngestConfig, error) {
	var wrapper struct {
		Ingest IngestConfig `mapstructure:"ingest"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return IngestConfig{}, err
	}
	return wrapper.Ingest, nil
}

func (h *IngestConfigHolder) Get() IngestConfig {
	return h.current.Load().(IngestConfig)
}

func validateIngestConfig(cfg IngestConfig) error {
	if cfg.LockTTL <= 0 {
		return errors.New("ingest.lockTTL must be positive")
	}
	if cfg.LockWait <= 0 {
		return errors.New("ingest.lockWait must be positive")
	}
	if cfg.ConflictRetries < 0 {
		return errors.New("ingest.conflictRetries cannot be negative")
	}
	if cfg.Workers <= 0 {
		return errors.New("ingest.workers must be positive")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("ingest.batchSize must be positive")
	}
	return nil
}
