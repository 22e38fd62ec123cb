package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/batch"
	"github.com/yeleman/anam-desktop/internal/redis"
)

const (
	publishTimeout = 2 * time.Second
	streamMaxLen   = 10000
)

// Stream appends every update to a Redis stream
type Stream struct {
	client *goredis.Client
	stream string
	logger *zap.Logger
}

// NewStream creates a Redis stream observer
func NewStream(client *goredis.Client, stream string, logger *zap.Logger) *Stream {
	return &Stream{client: client, stream: stream, logger: logger}
}

// OnProgress implements batch.Observer. Failures are logged, never returned
// to the import.
func (s *Stream) OnProgress(p batch.Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := redis.PublishJSONToStream(ctx, s.client, s.stream, streamMaxLen, p); err != nil {
		s.logger.Warn("Failed to publish progress to stream",
			zap.String("stream", s.stream),
			zap.String("run_id", p.RunID),
			zap.Error(err))
	}
}

// History returns the latest count updates published to stream, oldest
// first. Entries that do not decode are skipped.
func History(ctx context.Context, client *goredis.Client, stream string, count int64) ([]batch.Progress, error) {
	msgs, err := redis.ReadStream(ctx, client, stream, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read progress stream %s: %w", stream, err)
	}
	out := make([]batch.Progress, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var p batch.Progress
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
