package config

import (
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/dmitrijs2005/deviceguard/internal/netx"
)

// ConfigEnvVar names the environment variable consulted for the JSON config
// path when no -c/-config flag is given.
const ConfigEnvVar = "DEVICEGUARD_AGENT_CONFIG"

// MemoryKeyStore selects the in-process key store.
const MemoryKeyStore = "memory"

// ValueFlags are the flags that consume the next argument. Everything else on
// the command line is a command and its operands.
var ValueFlags = []string{"-a", "-g", "-d", "-k", "-f", "-s", "-t", "-l", "-c", "-config"}

type Config struct {
	ServerURL      string
	HealthAddr     string
	DataDir        string
	KeyAlias       string
	KeyStorePath   string
	AttributesFile string
	Scheme         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8081/api"
	c.HealthAddr = "127.0.0.1:50051"
	c.DataDir = "deviceguard-data"
	c.KeyAlias = common.DefaultKeyAlias
	c.KeyStorePath = "keystore.db"
	c.AttributesFile = ""
	c.Scheme = "oaep-gcm"
	c.ConnectTimeout = netx.DefaultTimeout
	c.ReadTimeout = netx.DefaultTimeout
	c.WriteTimeout = netx.DefaultTimeout
	c.LogLevel = "info"
}

// Timeouts converts the configured timeouts for netx.NewHTTPClient.
func (c *Config) Timeouts() netx.Timeouts {
	return netx.Timeouts{Connect: c.ConnectTimeout, Read: c.ReadTimeout, Write: c.WriteTimeout}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
