package directory

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/goliatone/go-user-directory/cache"
	"github.com/goliatone/go-user-directory/internal/logging"
	"github.com/goliatone/go-user-directory/model"
)

// UserCache is the read-model cache consulted by UserService. readcache.Cache
// satisfies it.
type UserCache interface {
	Get(ctx context.Context, id int64) (model.UserResponse, bool)
	Put(ctx context.Context, id int64, v model.UserResponse) error
	Remove(ctx context.Context, id int64) error
}

// loadingCache is implemented by caches that can fill a miss through a loader
// while deduplicating concurrent loads of the same id.
type loadingCache interface {
	GetOrLoad(ctx context.Context, id int64, load cache.FetchFn[model.UserResponse]) (model.UserResponse, error)
}

// Option configures a service.
type Option func(*options)

type options struct {
	logger         *log.Logger
	populateOnRead bool
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger)
	return o
}

// WithLogger sets the logger. Services are silent without one.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPopulateOnRead makes UserService.Get store the snapshot it loaded on a
// cache miss. It is off by default: a Get that loads a user concurrently with
// that user's delete can put the entry back after the delete evicted it, and
// only the cache TTL removes it then.
func WithPopulateOnRead(enabled bool) Option {
	return func(o *options) {
		o.populateOnRead = enabled
	}
}
