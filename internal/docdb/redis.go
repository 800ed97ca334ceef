package docdb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const (
	// redisConnectRetries is how many times each url is pinged before
	// moving on to the next one.
	redisConnectRetries = 3

	// redisConnectInterval is the pause between pings.
	redisConnectInterval = time.Second
)

// redisBackend stores each collection as a hash named
// "<database>:<collection>" with document ids as fields. The counter at
// "<database>:<collection>:etag" is incremented in the same transaction as
// every write to the collection.
type redisBackend struct {
	client   *redis.Client
	database string
}

func openRedis(ctx context.Context, opts Options) (*redisBackend, error) {
	var lastErr error

	for _, rawURL := range opts.URLs {
		redisOpts, err := redis.ParseURL(rawURL)
		if err != nil {
			lastErr = fmt.Errorf("parsing redis url: %w", err)
			continue
		}

		if opts.Certificate != nil {
			cert, err := opts.Certificate.TLS()
			if err != nil {
				return nil, err
			}

			if redisOpts.TLSConfig == nil {
				redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}

			redisOpts.TLSConfig.Certificates = []tls.Certificate{cert}
		}

		client := redis.NewClient(redisOpts)

		err = backoff.RetryNotify(
			func() error {
				return client.Ping(ctx).Err()
			},
			backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(redisConnectInterval), redisConnectRetries), ctx),
			func(err error, d time.Duration) {
				opts.Logger.Warn("redis not reachable, retrying",
					slog.String("addr", redisOpts.Addr),
					slog.Duration("backoff", d),
					slog.String("error", err.Error()),
				)
			},
		)
		if err != nil {
			client.Close()
			lastErr = fmt.Errorf("connecting to %s: %w", redisOpts.Addr, err)

			continue
		}

		return &redisBackend{client: client, database: opts.Database}, nil
	}

	return nil, lastErr
}

func (r *redisBackend) key(collection string) string {
	return r.database + ":" + collection
}

func (r *redisBackend) versionKey(collection string) string {
	return r.key(collection) + ":etag"
}

func (r *redisBackend) Get(ctx context.Context, collection, id string) ([]byte, error) {
	doc, err := r.client.HGet(ctx, r.key(collection), id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting %s: %w", id, err)
	}

	return doc, nil
}

func (r *redisBackend) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	docs, err := r.client.HGetAll(ctx, r.key(collection)).Result()
	if err != nil {
		return fmt.Errorf("scanning %s: %w", collection, err)
	}

	for id, doc := range docs {
		if err := fn(id, []byte(doc)); err != nil {
			return err
		}
	}

	return nil
}

func (r *redisBackend) Commit(ctx context.Context, batch []Mutation) error {
	_, err := r.CommitVersioned(ctx, batch)
	return err
}

func (r *redisBackend) CommitVersioned(ctx context.Context, batch []Mutation) (map[string]uint64, error) {
	counters := make(map[string]*redis.IntCmd)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range batch {
			if m.Delete {
				pipe.HDel(ctx, r.key(m.Collection), m.ID)
			} else {
				pipe.HSet(ctx, r.key(m.Collection), m.ID, m.Doc)
			}

			if _, ok := counters[m.Collection]; !ok {
				counters[m.Collection] = nil
			}
		}

		for collection := range counters {
			counters[collection] = pipe.Incr(ctx, r.versionKey(collection))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}

	versions := make(map[string]uint64, len(counters))
	for collection, cmd := range counters {
		versions[collection] = uint64(cmd.Val())
	}

	return versions, nil
}

func (r *redisBackend) Version(ctx context.Context, collection string) (uint64, error) {
	v, err := r.client.Get(ctx, r.versionKey(collection)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, fmt.Errorf("reading version of %s: %w", collection, err)
	}

	return v, nil
}

func (r *redisBackend) Close() error {
	return r.client.Close()
}
