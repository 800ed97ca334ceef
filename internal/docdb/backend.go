package docdb

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks . Backend

// Mutation is a single write inside an atomic commit. A nil Doc with
// Delete set removes the document.
type Mutation struct {
	Collection string
	ID         string
	Doc        []byte
	Delete     bool
}

// Backend is the raw document storage underneath a DocumentStore. Get
// returns nil, nil when the document does not exist.
type Backend interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error
	Commit(ctx context.Context, batch []Mutation) error
	Close() error
}

// versionedBackend is a backend shared between processes. Every commit
// bumps a counter per collection it touches, so a process can tell when
// another one has written.
type versionedBackend interface {
	Backend

	// CommitVersioned commits batch and returns the new version of each
	// collection it touched.
	CommitVersioned(ctx context.Context, batch []Mutation) (map[string]uint64, error)

	// Version returns the current version of collection, 0 before its
	// first write.
	Version(ctx context.Context, collection string) (uint64, error)
}

// openBackend picks a backend from the first url's scheme. All urls must
// share the scheme; the redis backend tries each of them in turn.
func openBackend(ctx context.Context, opts Options) (Backend, error) {
	u, err := url.Parse(opts.URLs[0])
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", opts.URLs[0], err)
	}

	switch strings.ToLower(u.Scheme) {
	case "bolt", "file":
		dir := u.Path
		if u.Host != "" && u.Host != "localhost" {
			dir = filepath.Join(u.Host, u.Path)
		}

		return openBolt(filepath.Join(dir, opts.Database+".db"))
	case "redis", "rediss":
		return openRedis(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
