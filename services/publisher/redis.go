package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"math/rand/v2"

	"github.com/redis/go-redis/v9"

	"sjsage522/hotdealmatcher/internal/crawler"
)

// rowsKey is the field name consumers read from stream entries.
const rowsKey = "b64_pricerows"

// RedisPublisher implements Publisher on Redis streams.
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// PublishRows publishes a batch of result rows as base64-encoded JSON to one
// of the streams. With streamCount 10, stream names run stream:0 ~ stream:9.
func (p *RedisPublisher) PublishRows(rows []crawler.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	message, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	stream := p.streamPrefix + ":" + strconv.Itoa(rand.IntN(p.streamCount))

	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			rowsKey: encodedMessage,
		},
	}).Err()
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams() error {
	pattern := p.streamPrefix + ":*"
	streams, err := p.client.Keys(p.ctx, pattern).Result()
	if err != nil {
		return err
	}

	for _, stream := range streams {
		err := p.client.XTrimMaxLen(p.ctx, stream, int64(p.streamMaxLength)).Err()
		if err != nil {
			return err
		}
	}

	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
