// Package snapshots stores device snapshots received by the collector
// together with the envelope they arrived in.
package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("snapshots: not found")

// Snapshot is one accepted upload. Payload is the decrypted JSON document;
// Envelope is the request body exactly as received.
type Snapshot struct {
	ID         string
	Scheme     string
	Payload    json.RawMessage
	Envelope   []byte
	ReceivedAt time.Time
}

type Repository interface {
	Save(ctx context.Context, s *Snapshot) error
	Get(ctx context.Context, id string) (*Snapshot, error)
	Count(ctx context.Context) (int64, error)
}

func clone(s *Snapshot) *Snapshot {
	c := *s
	c.Payload = append(json.RawMessage(nil), s.Payload...)
	c.Envelope = append([]byte(nil), s.Envelope...)
	return &c
}
