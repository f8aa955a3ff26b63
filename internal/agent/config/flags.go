package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. See the package
// documentation for the flag list. It panics on malformed values.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-k", "-f", "-s", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "collector API base URL")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "collector gRPC health address")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "private data directory")
	fs.StringVar(&cfg.KeyStorePath, "k", cfg.KeyStorePath, "key store database path (or \"memory\")")
	fs.StringVar(&cfg.AttributesFile, "f", cfg.AttributesFile, "static device attributes JSON file")
	fs.StringVar(&cfg.Scheme, "s", cfg.Scheme, "envelope scheme")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	timeout := fs.Int("t", 0, "connect/read/write timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *timeout > 0 {
		d := time.Duration(*timeout) * time.Second
		cfg.ConnectTimeout, cfg.ReadTimeout, cfg.WriteTimeout = d, d, d
	}
}
