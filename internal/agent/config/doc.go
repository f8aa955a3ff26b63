// Package config loads runtime configuration for the device agent.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c / -config, or with the
//     DEVICEGUARD_AGENT_CONFIG environment variable.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   collector API base URL (e.g. http://127.0.0.1:8081/api)
//	-g string   collector gRPC health address (host:port)
//	-d string   private data directory for exported snapshots
//	-k string   key store database path, relative to -d; "memory" keeps keys in RAM
//	-f string   JSON file of static device attributes (default: read the host)
//	-s string   envelope scheme: oaep-gcm or pkcs1-ecb
//	-t int      connect/read/write timeout (seconds)
//	-l string   log level: debug, info, warn, error
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "30s" or integer
// nanoseconds. Absent fields keep their previous value.
//
//	{
//	  "server_url": "http://127.0.0.1:8081/api",
//	  "health_addr": "127.0.0.1:50051",
//	  "data_dir": "deviceguard-data",
//	  "key_alias": "deviceguard_local_aes_key",
//	  "keystore_path": "keystore.db",
//	  "attributes_file": "",
//	  "scheme": "oaep-gcm",
//	  "connect_timeout": "30s",
//	  "read_timeout": "30s",
//	  "write_timeout": "30s",
//	  "log_level": "info"
//	}
package config
