package di

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/goliatone/go-user-directory/cache"
	"github.com/goliatone/go-user-directory/directory"
	"github.com/goliatone/go-user-directory/internal/config"
	"github.com/goliatone/go-user-directory/internal/logging"
	"github.com/goliatone/go-user-directory/membership"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/readcache"
	"github.com/goliatone/go-user-directory/store"
	"github.com/goliatone/go-user-directory/store/bunstore"
	"github.com/goliatone/go-user-directory/store/memstore"
)

// Container wires the store, the user read-model cache, the membership
// coordinator and the directory services from one Config. Every component is
// a single instance shared by the services.
type Container struct {
	config        config.Config
	logger        *log.Logger
	store         store.Store
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	userCache     *readcache.Cache[model.UserResponse]
	coordinator   *membership.Coordinator
	users         *directory.UserService
	groups        *directory.GroupService
	tasks         *directory.TaskService
}

// Option customizes a Container.
type Option func(*Container)

// WithLogger sets the logger handed to the store and the services.
func WithLogger(l *log.Logger) Option {
	return func(c *Container) {
		c.logger = l
	}
}

// WithStore uses s instead of opening the store described by the config.
// The container takes ownership and closes s on Close.
func WithStore(s store.Store) Option {
	return func(c *Container) {
		c.store = s
	}
}

// NewContainer validates cfg and builds every component. For SQL drivers the
// schema is created when missing.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)

	cacheService, err := cache.NewCacheService(cfg.CacheConfig())
	if err != nil {
		return nil, err
	}

	if c.store == nil {
		s, err := OpenStore(ctx, cfg.Database, c.logger)
		if err != nil {
			return nil, err
		}
		c.store = s
	}

	c.cacheService = cacheService
	c.keySerializer = cache.NewDefaultKeySerializer()
	c.userCache = readcache.New[model.UserResponse](c.cacheService, c.keySerializer)
	c.coordinator = membership.NewCoordinator(c.store, c.logger)

	svcOpts := []directory.Option{
		directory.WithLogger(c.logger),
		directory.WithPopulateOnRead(cfg.Cache.PopulateOnRead),
	}
	c.users = directory.NewUserService(c.store, c.userCache, c.coordinator, svcOpts...)
	c.groups = directory.NewGroupService(c.store, c.coordinator, svcOpts...)
	c.tasks = directory.NewTaskService(c.store, svcOpts...)

	return c, nil
}

// NewContainerWithDefaults builds a Container over an in-memory store with the
// default cache settings.
func NewContainerWithDefaults() (*Container, error) {
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: config.DriverMemory}
	return NewContainer(context.Background(), cfg)
}

// OpenStore opens the store selected by db.Driver.
func OpenStore(ctx context.Context, db config.DatabaseConfig, logger *log.Logger) (store.Store, error) {
	if db.Driver == config.DriverMemory {
		return memstore.New(), nil
	}

	s, err := bunstore.Open(db.Driver, db.DSN, bunstore.Options{
		MaxOpenConns: db.MaxOpenConns,
		MaxIdleConns: db.MaxIdleConns,
		Logger:       logging.With(logger, "component", "store"),
	})
	if err != nil {
		return nil, err
	}
	if err := s.CreateSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare %s store: %w", db.Driver, err)
	}
	return s, nil
}

func (c *Container) Config() config.Config                           { return c.config }
func (c *Container) Logger() *log.Logger                             { return c.logger }
func (c *Container) Store() store.Store                              { return c.store }
func (c *Container) CacheService() cache.CacheService                { return c.cacheService }
func (c *Container) KeySerializer() cache.KeySerializer              { return c.keySerializer }
func (c *Container) UserCache() *readcache.Cache[model.UserResponse] { return c.userCache }
func (c *Container) Coordinator() *membership.Coordinator            { return c.coordinator }
func (c *Container) Users() *directory.UserService                   { return c.users }
func (c *Container) Groups() *directory.GroupService                 { return c.groups }
func (c *Container) Tasks() *directory.TaskService                   { return c.tasks }

// Close drops every cached read-model and closes the store.
func (c *Container) Close() error {
	if err := c.userCache.InvalidateAll(context.Background()); err != nil {
		c.logger.Warn("failed to clear user cache", "err", err)
	}
	return c.store.Close()
}
