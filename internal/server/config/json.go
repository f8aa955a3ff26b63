package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/deviceguard/internal/flagx"
	"github.com/dmitrijs2005/deviceguard/internal/timex"
)

// JsonConfig is the JSON shape of Config. Durations accept "24h" or integer
// nanoseconds.
type JsonConfig struct {
	HTTPAddr        string         `json:"http_addr"`
	GRPCAddr        string         `json:"grpc_addr"`
	PrivateKeyPath  string         `json:"private_key_path"`
	DatabaseDSN     string         `json:"database_dsn"`
	ReceiptSecret   string         `json:"receipt_secret"`
	ReceiptValidity timex.Duration `json:"receipt_validity"`
	S3AccessKey     string         `json:"s3_access_key"`
	S3SecretKey     string         `json:"s3_secret_key"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	LogLevel        string         `json:"log_level"`
}

// parseJson loads the JSON file named by -c/-config (or ConfigEnvVar) and
// overlays its non-empty values onto config. It panics if the file cannot be
// read or parsed.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(ConfigEnvVar)
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlay(&config.HTTPAddr, c.HTTPAddr)
	overlay(&config.GRPCAddr, c.GRPCAddr)
	overlay(&config.PrivateKeyPath, c.PrivateKeyPath)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.ReceiptSecret, c.ReceiptSecret)
	overlay(&config.S3AccessKey, c.S3AccessKey)
	overlay(&config.S3SecretKey, c.S3SecretKey)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.LogLevel, c.LogLevel)

	if c.ReceiptValidity.Duration > 0 {
		config.ReceiptValidity = c.ReceiptValidity.Duration
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
