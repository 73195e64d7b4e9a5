package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dmitrijs2005/docdash/internal/flagx"
	"github.com/dmitrijs2005/docdash/internal/timex"
)

// fileConfig is the DTO shared by the JSON and TOML loaders. Absent keys
// stay nil and leave the corresponding Config field alone.
type fileConfig struct {
	ServerBaseURL         *string         `json:"server_base_url" toml:"server_base_url"`
	RequestTimeout        *timex.Duration `json:"request_timeout" toml:"request_timeout"`
	DatabasePath          *string         `json:"database_path" toml:"database_path"`
	ProfileCheckInterval  *timex.Duration `json:"profile_check_interval" toml:"profile_check_interval"`
	PollInterval          *timex.Duration `json:"poll_interval" toml:"poll_interval"`
	StalenessWindow       *timex.Duration `json:"staleness_window" toml:"staleness_window"`
	ReadRetries           *int            `json:"read_retries" toml:"read_retries"`
	MutationRetries       *int            `json:"mutation_retries" toml:"mutation_retries"`
	AggregatorConcurrency *int            `json:"aggregator_concurrency" toml:"aggregator_concurrency"`
	CategoryCacheTTL      *timex.Duration `json:"category_cache_ttl" toml:"category_cache_ttl"`
	DownloadDir           *string         `json:"download_dir" toml:"download_dir"`
	LogLevel              *string         `json:"log_level" toml:"log_level"`
	LogFile               *string         `json:"log_file" toml:"log_file"`
	MetricsAddr           *string         `json:"metrics_addr" toml:"metrics_addr"`
	TracingEnabled        *bool           `json:"tracing_enabled" toml:"tracing_enabled"`
}

// parseFile overlays cfg with the file named by -c or -config. Files ending
// in .toml are decoded as TOML, everything else as JSON. Read and decode
// errors panic.
func parseFile(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			panic(fmt.Errorf("decode config file %s: %w", path, err))
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			panic(err)
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			panic(fmt.Errorf("decode config file %s: %w", path, err))
		}
	}
	fc.apply(cfg)
}

func (fc fileConfig) apply(cfg *Config) {
	setStr(&cfg.ServerBaseURL, fc.ServerBaseURL)
	setDur(&cfg.RequestTimeout, fc.RequestTimeout)
	setStr(&cfg.DatabasePath, fc.DatabasePath)
	setDur(&cfg.ProfileCheckInterval, fc.ProfileCheckInterval)
	setDur(&cfg.PollInterval, fc.PollInterval)
	setDur(&cfg.StalenessWindow, fc.StalenessWindow)
	setInt(&cfg.ReadRetries, fc.ReadRetries)
	setInt(&cfg.MutationRetries, fc.MutationRetries)
	setInt(&cfg.AggregatorConcurrency, fc.AggregatorConcurrency)
	setDur(&cfg.CategoryCacheTTL, fc.CategoryCacheTTL)
	setStr(&cfg.DownloadDir, fc.DownloadDir)
	setStr(&cfg.LogLevel, fc.LogLevel)
	setStr(&cfg.LogFile, fc.LogFile)
	setStr(&cfg.MetricsAddr, fc.MetricsAddr)
	if fc.TracingEnabled != nil {
		cfg.TracingEnabled = *fc.TracingEnabled
	}
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDur(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
