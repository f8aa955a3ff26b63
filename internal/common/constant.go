// Package common contains constants, sentinel errors and small byte helpers
// shared by the agent and the collector.
package common

// Collector API routes, relative to the configured base URL.
const (
	PublicKeyRoute = "/configured-public-key"
	UploadRoute    = "/upload"
)

// JSONContentType is the content type of every JSON request the agent sends.
const JSONContentType = "application/json; charset=utf-8"

// DefaultKeyAlias names the persisted key used by the local secure store.
const DefaultKeyAlias = "deviceguard_local_aes_key"
