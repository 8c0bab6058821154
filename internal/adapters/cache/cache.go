// Package cache stores served prediction reports keyed by model id and team.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/okian/matchcast/internal/domain/types"
)

// KeyPrefix namespaces every key this package writes.
const KeyPrefix = "matchcast:prediction"

// DefaultTTL applies when no TTL option is given.
const DefaultTTL = 5 * time.Minute

// ErrMiss is returned by Get when no report is stored for the key.
var ErrMiss = errors.New("cache miss")

// Cache is a read-through store of prediction reports. Reports are only
// valid for the model that produced them, so the model id is part of the key.
type Cache interface {
	Get(ctx context.Context, modelID, team string) (types.Report, error)
	Set(ctx context.Context, modelID, team string, report types.Report) error
	Close() error
}

// Key returns the storage key for a team prediction under modelID.
func Key(modelID, team string) string {
	return KeyPrefix + ":" + modelID + ":" + team
}
