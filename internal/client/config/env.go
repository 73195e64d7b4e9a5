package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "DOCDASH_"

// envSource merges the variables of the dotenv file with the process
// environment. A variable set in the environment wins over the file; a
// missing file is not an error.
func envSource(dotenv string, lookup func(string) (string, bool)) func(string) (string, bool) {
	fileVars := map[string]string{}
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			panic(fmt.Errorf("read %s: %w", dotenv, err))
		}
	}

	return func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v, true
			}
		}
		v, ok := fileVars[key]
		return v, ok
	}
}

// parseEnv overlays cfg with DOCDASH_* variables.
func parseEnv(cfg *Config, get func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := get(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := get(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(fmt.Errorf("%s%s: %w", envPrefix, name, err))
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := get(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(fmt.Errorf("%s%s: %w", envPrefix, name, err))
			}
			*dst = n
		}
	}

	str("SERVER_URL", &cfg.ServerBaseURL)
	dur("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	str("DB_PATH", &cfg.DatabasePath)
	dur("PROFILE_CHECK_INTERVAL", &cfg.ProfileCheckInterval)
	dur("POLL_INTERVAL", &cfg.PollInterval)
	dur("STALENESS_WINDOW", &cfg.StalenessWindow)
	num("READ_RETRIES", &cfg.ReadRetries)
	num("MUTATION_RETRIES", &cfg.MutationRetries)
	num("AGGREGATOR_CONCURRENCY", &cfg.AggregatorConcurrency)
	dur("CATEGORY_CACHE_TTL", &cfg.CategoryCacheTTL)
	str("DOWNLOAD_DIR", &cfg.DownloadDir)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	str("METRICS_ADDR", &cfg.MetricsAddr)

	if v, ok := get(envPrefix + "TRACING_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(fmt.Errorf("%sTRACING_ENABLED: %w", envPrefix, err))
		}
		cfg.TracingEnabled = b
	}
}
