// Package publish pushes finished per-line snapshots into Redis so
// collaborators outside the daemon process can read them without going
// through the HTTP API.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nordlys-io/sxwatch/pkg/poll"
	"github.com/nordlys-io/sxwatch/pkg/situation"
)

const linesSet = "sxwatch:lines"

// RedisPublisher writes one key per line snapshot plus a set of known
// line keys. Keys are overwritten wholesale each cycle, mirroring the
// coordinator's snapshot-replacement semantics.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func lineKey(ref string) string {
	return fmt.Sprintf("sxwatch:line:%s", ref)
}

// Publish stores every line snapshot in the view. Stale cached views are
// published too; consumers read freshness from the meta key.
func (p *RedisPublisher) Publish(ctx context.Context, view poll.View) error {
	pipe := p.client.Pipeline()

	for ref, snap := range view.Lines {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot for %s: %w", ref, err)
		}
		pipe.Set(ctx, lineKey(ref), data, 0)
		pipe.SAdd(ctx, linesSet, lineKey(ref))
	}

	meta, err := json.Marshal(map[string]any{
		"fetched_at":     view.FetchedAt,
		"fresh":          view.Fresh,
		"truncated":      view.Truncated,
		"backing_off":    view.BackingOff,
		"throttle_count": view.ThrottleCount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot meta: %w", err)
	}
	pipe.Set(ctx, "sxwatch:meta", meta, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// Get reads one published line snapshot back. Used by out-of-process
// consumers and tests.
func (p *RedisPublisher) Get(ctx context.Context, ref string) (situation.LineSnapshot, bool, error) {
	data, err := p.client.Get(ctx, lineKey(ref)).Result()
	if err != nil {
		if err == redis.Nil {
			return situation.LineSnapshot{}, false, nil
		}
		return situation.LineSnapshot{}, false, fmt.Errorf("failed to get snapshot for %s: %w", ref, err)
	}
	var snap situation.LineSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return situation.LineSnapshot{}, false, fmt.Errorf("failed to unmarshal snapshot for %s: %w", ref, err)
	}
	return snap, true, nil
}
