package config

import (
	"os"
	"time"
)

// Config holds runtime settings of the docdash terminal client.
type Config struct {
	ServerBaseURL        string
	RequestTimeout       time.Duration
	DatabasePath         string
	ProfileCheckInterval time.Duration

	PollInterval          time.Duration
	StalenessWindow       time.Duration
	ReadRetries           int
	MutationRetries       int
	AggregatorConcurrency int
	CategoryCacheTTL      time.Duration
	DownloadDir           string

	LogLevel       string
	LogFile        string
	MetricsAddr    string
	TracingEnabled bool
}

// LoadDefaults populates c with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://localhost:3000"
	c.RequestTimeout = 30 * time.Second
	c.DatabasePath = "docdash.db"
	c.ProfileCheckInterval = 60 * time.Second

	c.PollInterval = 30 * time.Second
	c.StalenessWindow = 5 * time.Minute
	c.ReadRetries = 3
	c.MutationRetries = 2
	c.AggregatorConcurrency = 8
	c.CategoryCacheTTL = 5 * time.Minute
	c.DownloadDir = "downloads"

	c.LogLevel = "info"
	c.LogFile = ""
	c.MetricsAddr = ""
	c.TracingEnabled = false
}

// LoadConfig builds a Config from defaults, the .env file and the process
// environment, an optional JSON or TOML file and command-line flags, in
// that order. Later sources take precedence. Invalid values panic.
func LoadConfig() *Config {
	return load(os.Args[1:], os.LookupEnv, ".env")
}

func load(args []string, lookup func(string) (string, bool), dotenv string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, envSource(dotenv, lookup))
	parseFile(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
