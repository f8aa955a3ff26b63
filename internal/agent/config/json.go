package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/deviceguard/internal/flagx"
	"github.com/dmitrijs2005/deviceguard/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	HealthAddr     string         `json:"health_addr"`
	DataDir        string         `json:"data_dir"`
	KeyAlias       string         `json:"key_alias"`
	KeyStorePath   string         `json:"keystore_path"`
	AttributesFile string         `json:"attributes_file"`
	Scheme         string         `json:"scheme"`
	ConnectTimeout timex.Duration `json:"connect_timeout"`
	ReadTimeout    timex.Duration `json:"read_timeout"`
	WriteTimeout   timex.Duration `json:"write_timeout"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays Config with the non-empty values of the JSON file chosen
// by flagx.ConfigPath. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(ConfigEnvVar)
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.HealthAddr, jc.HealthAddr)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.KeyAlias, jc.KeyAlias)
	setString(&cfg.KeyStorePath, jc.KeyStorePath)
	setString(&cfg.AttributesFile, jc.AttributesFile)
	setString(&cfg.Scheme, jc.Scheme)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.ConnectTimeout.Duration > 0 {
		cfg.ConnectTimeout = jc.ConnectTimeout.Duration
	}
	if jc.ReadTimeout.Duration > 0 {
		cfg.ReadTimeout = jc.ReadTimeout.Duration
	}
	if jc.WriteTimeout.Duration > 0 {
		cfg.WriteTimeout = jc.WriteTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
