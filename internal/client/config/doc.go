// Package config loads runtime configuration for the docdash terminal client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. DOCDASH_* variables from a .env file in the working directory,
//     overridden by the same variables in the process environment.
//  3. Optional config file selected with -c or -config. A .toml extension
//     selects TOML, anything else is read as JSON.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   base URL of the document API
//	-t int      request timeout (seconds)
//	-d string   path of the local database
//	-i int      profile check interval (seconds)
//
// # File schema
//
// Durations use timex.Duration, so they can be strings like "30s" or
// integer nanoseconds. Keys that are absent keep their earlier value.
//
//	{
//	  "server_base_url": "https://docs.example.com",
//	  "request_timeout": "30s",
//	  "database_path": "docdash.db",
//	  "poll_interval": "30s",
//	  "log_file": "docdash.log"
//	}
package config
