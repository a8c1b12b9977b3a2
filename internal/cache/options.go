package cache

import (
	"github.com/go-git/go-billy/v5"
)

// StoreOption configures Store creation.
type StoreOption func(*storeOptions)

type storeOptions struct {
	fs           billy.Filesystem // Filesystem to use for all I/O operations
	logger       *Logger
	policy       RetentionPolicy
	verifyOnRead bool
}

// WithFilesystem sets the billy filesystem to use for store operations.
// If not provided, the store uses the local filesystem.
//
// This option is primarily useful for testing, allowing use of memfs or
// other virtual filesystems.
//
// Example:
//
//	store, err := cache.NewStore("/cache/path",
//	    cache.WithFilesystem(memfs.New()))
func WithFilesystem(fs billy.Filesystem) StoreOption {
	return func(opts *storeOptions) {
		opts.fs = fs
	}
}

// WithLogger sets the logger for store diagnostics. The default logger
// discards everything.
func WithLogger(logger *Logger) StoreOption {
	return func(opts *storeOptions) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithRetentionPolicy sets the default retention policy applied by pruning
// and by writes that do not carry their own policy.
func WithRetentionPolicy(policy RetentionPolicy) StoreOption {
	return func(opts *storeOptions) {
		opts.policy = policy.normalized()
	}
}

// WithVerifyOnRead controls whether reads recompute the stored digest and
// fail with ErrCorrupted on mismatch. Enabled by default.
func WithVerifyOnRead(verify bool) StoreOption {
	return func(opts *storeOptions) {
		opts.verifyOnRead = verify
	}
}
