package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/docdash/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the document API
//	-t int      request timeout (seconds)
//	-d string   path of the local database
//	-i int      profile check interval (seconds)
//
// Only these flags are looked at, so other components may own the rest of
// the command line. A malformed value panics.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-t", "-d", "-i"})

	fs := flag.NewFlagSet("docdash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the document API")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	interval := fs.Int("i", int(cfg.ProfileCheckInterval.Seconds()), "profile check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Sub-second values from earlier sources survive unless overridden.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		case "i":
			cfg.ProfileCheckInterval = time.Duration(*interval) * time.Second
		}
	})
}
