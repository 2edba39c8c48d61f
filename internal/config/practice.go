package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PracticeConfig holds operational tunables that partners adjust without a
// redeploy: bulk batch limits, reminder windows and quarter auto-creation.
type PracticeConfig struct {
	MaxBulkBatchSize      int `mapstructure:"maxBulkBatchSize"`
	ReminderLeadDays      int `mapstructure:"reminderLeadDays"`
	QuarterCreateLeadDays int `mapstructure:"quarterCreateLeadDays"`
	BulkJobTTLHours       int `mapstructure:"bulkJobTtlHours"`
}

func DefaultPracticeConfig() PracticeConfig {
	return PracticeConfig{
		MaxBulkBatchSize:      100,
		ReminderLeadDays:      14,
		QuarterCreateLeadDays: 7,
		BulkJobTTLHours:       72,
	}
}

type PracticeConfigHolder struct {
	current atomic.Value // holds PracticeConfig
}

func NewPracticeConfigHolder() (*PracticeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("practice")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/practicehub/config") // Volume-mounted config
	v.AddConfigPath("/etc/practicehub")            // System config
	v.AddConfigPath(".")                           // Current directory (dev mode)

	v.SetEnvPrefix("PRACTICEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPracticeConfig()
		v.SetDefault("practice.maxBulkBatchSize", defaults.MaxBulkBatchSize)
		v.SetDefault("practice.reminderLeadDays", defaults.ReminderLeadDays)
		v.SetDefault("practice.quarterCreateLeadDays", defaults.QuarterCreateLeadDays)
		v.SetDefault("practice.bulkJobTtlHours", defaults.BulkJobTTLHours)
	}

	var cfg PracticeConfig
	if err := v.UnmarshalKey("practice", &cfg); err != nil {
		return nil, err
	}
	if err := validatePracticeConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PracticeConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PracticeConfig
		if err := v.UnmarshalKey("practice", &updated); err != nil {
			log.Printf("[practice-config] reload failed: %v", err)
			return
		}
		if err := validatePracticeConfig(updated); err != nil {
			log.Printf("[practice-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[practice-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PracticeConfigHolder) Get() PracticeConfig {
	return h.current.Load().(PracticeConfig)
}

// NewStaticPracticeConfigHolder is for tests.
func NewStaticPracticeConfigHolder(cfg PracticeConfig) *PracticeConfigHolder {
	holder := &PracticeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePracticeConfig(cfg PracticeConfig) error {
	if cfg.MaxBulkBatchSize <= 0 {
		return errors.New("practice.maxBulkBatchSize must be positive")
	}
	if cfg.ReminderLeadDays < 0 {
		return errors.New("practice.reminderLeadDays must not be negative")
	}
	if cfg.QuarterCreateLeadDays < 0 {
		return errors.New("practice.quarterCreateLeadDays must not be negative")
	}
	if cfg.BulkJobTTLHours <= 0 {
		return errors.New("practice.bulkJobTtlHours must be positive")
	}
	return nil
}
