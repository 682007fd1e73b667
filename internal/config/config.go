package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Default search constants.
const (
	DefaultInitialQuality = 95
	DefaultMinQuality     = 50
	DefaultMaxQuality     = 95
	DefaultMaxAttempts    = 20
	DefaultUndershootKB   = 5
	DefaultStepDown       = 2
	DefaultStepUp         = 1
)

// Create new config instance populated with defaults
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			ReadTimeout:  30,
			WriteTimeout: 120,
		},
		Upload: UploadConfig{
			MaxRequestBodyMB:     100,
			MaxMultipartMemoryMB: 32,
			MaxBatchFiles:        50,
		},
		Conversion: DefaultConversion(),
		Batch:      BatchConfig{Workers: 4},
		Redis: RedisConfig{
			HealthCheckInterval: 30,
			DialTimeout:         5,
			ReadTimeout:         3,
			WriteTimeout:        3,
			PoolSize:            20,
		},
		Cache: CacheConfig{
			Namespace: "imageconv:results",
			TTL:       0,
		},
	}
}

func DefaultConversion() ConversionConfig {
	return ConversionConfig{
		Search: SearchConfig{
			InitialQuality: DefaultInitialQuality,
			MinQuality:     DefaultMinQuality,
			MaxQuality:     DefaultMaxQuality,
			MaxAttempts:    DefaultMaxAttempts,
			UndershootKB:   DefaultUndershootKB,
			StepDown:       DefaultStepDown,
			StepUp:         DefaultStepUp,
		},
		Tracer: TracerConfig{
			Colors:         16,
			ColorSampling:  2,
			LineTolerance:  1,
			CurveTolerance: 1,
			PathOmit:       8,
			Scale:          1,
		},
		MaxVectorPasses: 10,
	}
}

// Load configuration file in json format. Values absent from the file keep
// their defaults.
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
