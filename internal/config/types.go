package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Upload     UploadConfig     `json:"upload"`
	Conversion ConversionConfig `json:"conversion"`
	Batch      BatchConfig      `json:"batch"`
	Redis      RedisConfig      `json:"redis"`
	Cache      CacheConfig      `json:"cache"`
	Sentry     SentryConfig     `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `json:"read_timeout"`  // seconds
	WriteTimeout time.Duration `json:"write_timeout"` // seconds
}

type UploadConfig struct {
	MaxRequestBodyMB     int64 `json:"max_request_body" validate:"gt=0"`
	MaxMultipartMemoryMB int64 `json:"max_multipart_memory" validate:"gt=0"`
	MaxBatchFiles        int   `json:"max_batch_files" validate:"gt=0"`
}

type ConversionConfig struct {
	Search SearchConfig `json:"search"`
	Tracer TracerConfig `json:"tracer"`
	// MaxVectorPasses caps the svg minification fixed-point loop.
	MaxVectorPasses int `json:"max_vector_passes" validate:"gt=0"`
}

// SearchConfig tunes the target-size loop. Changing any of these changes
// convergence behaviour.
type SearchConfig struct {
	InitialQuality int     `json:"initial_quality" validate:"gte=1,lte=100,gtefield=MinQuality,ltefield=MaxQuality"`
	MinQuality     int     `json:"min_quality" validate:"gte=1,lte=100"`
	MaxQuality     int     `json:"max_quality" validate:"gte=1,lte=100,gtefield=MinQuality"`
	MaxAttempts    int     `json:"max_attempts" validate:"gt=0"`  // encode calls
	UndershootKB   float64 `json:"undershoot_kb" validate:"gte=0"` // window width below target
	StepDown       int     `json:"step_down" validate:"gt=0"`
	StepUp         int     `json:"step_up" validate:"gt=0"`
}

type TracerConfig struct {
	Colors         int     `json:"colors" validate:"gte=2,lte=256"`
	ColorSampling  int     `json:"color_sampling" validate:"gte=0,lte=2"`
	LineTolerance  float64 `json:"line_tolerance" validate:"gt=0"`
	CurveTolerance float64 `json:"curve_tolerance" validate:"gt=0"`
	PathOmit       int     `json:"path_omit" validate:"gte=0"`
	Scale          float64 `json:"scale" validate:"gt=0"`
}

type BatchConfig struct {
	Workers int `json:"workers" validate:"gt=0"` // concurrent conversions per batch request
}

type RedisConfig struct {
	Password            string        `json:"password"`
	DatabaseID          int           `json:"database_id"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	PoolSize            int           `json:"pool_size"`
	Nodes               []RedisNode   `json:"nodes"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

type CacheConfig struct {
	Namespace string `json:"namespace"`
	TTL       int    `json:"ttl"` // seconds; 0 disables caching
}

// CacheEnabled reports whether conversion results should go through Redis.
func (c Config) CacheEnabled() bool {
	return len(c.Redis.Nodes) > 0 && c.Cache.TTL > 0
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}
