package kvtree

// DefaultCacheCapacity is the pager's default LRU cache size in pages,
// per the storage specification.
const DefaultCacheCapacity = 100

// Options configures database behavior.
type Options struct {
	cacheCapacity int
	syncOnClose   bool
	logger        Logger
}

// DefaultOptions returns the engine's default configuration: a 100-page
// cache, an fsync on Close, and a discarding logger.
func DefaultOptions() Options {
	return Options{
		cacheCapacity: DefaultCacheCapacity,
		syncOnClose:   true,
		logger:        DiscardLogger{},
	}
}

// Option configures Options using the functional-options pattern.
type Option func(*Options)

// WithCacheCapacity sets the pager's LRU cache capacity in pages. Values
// below the pager's minimum are clamped rather than rejected, since
// borrow/merge needs at least four pages resident at once.
func WithCacheCapacity(pages int) Option {
	return func(o *Options) {
		o.cacheCapacity = pages
	}
}

// WithSyncOnClose controls whether Close calls fsync after writing the
// final file header. The storage specification leaves durability on
// unclean shutdown undefined either way; this defaults to true.
func WithSyncOnClose(sync bool) Option {
	return func(o *Options) {
		o.syncOnClose = sync
	}
}

// WithLogger injects a Logger. The default is DiscardLogger.
func WithLogger(l Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}
