// Package config handles configuration for the collector server, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// ConfigEnvVar names the environment variable consulted for the JSON config
// path when no -c/-config flag is given.
const ConfigEnvVar = "DEVICEGUARD_SERVER_CONFIG"

// Config holds runtime settings for the collector.
//
// Fields:
//   - HTTPAddr: bind address of the upload API.
//   - GRPCAddr: bind address of the gRPC health service.
//   - PrivateKeyPath: RSA private key PEM; generated on first start if absent.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps snapshots in memory.
//   - ReceiptSecret / ReceiptValidity: HS256 secret and lifetime of upload receipts.
//   - S3AccessKey / S3SecretKey / S3Bucket / S3Region / S3BaseEndpoint: envelope
//     archive settings. An empty bucket disables archiving.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	PrivateKeyPath  string
	DatabaseDSN     string
	ReceiptSecret   string
	ReceiptValidity time.Duration
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3Region        string
	S3BaseEndpoint  string
	LogLevel        string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the receipt secret must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8081"
	c.GRPCAddr = ":50051"
	c.PrivateKeyPath = "collector_key.pem"
	c.DatabaseDSN = ""
	c.ReceiptSecret = "secretKey"
	c.ReceiptValidity = 24 * time.Hour
	c.S3AccessKey = ""
	c.S3SecretKey = ""
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
