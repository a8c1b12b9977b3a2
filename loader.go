// Package fontcache provides dynamic font caching functionality.
// This file contains the one-shot font loader.
package fontcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Loader binds one font family to its locators and loads it at most once.
// It is the convenience surface over Client for the common case of an
// application loading a family at startup: cached members are served from
// disk, missing ones are fetched, and the whole family is registered in one
// call.
//
// A Loader is single-use. The first Load consumes it whether it succeeds or
// fails; every later Load returns ErrAlreadyLoaded. Construct a new Loader
// to retry a failed load.
type Loader struct {
	// family is the name members are registered under
	family string

	// locators name the family members, in registration order
	locators []string

	// client performs the fetch, cache, and register work
	client *Client

	// mu serializes Load with the loaded flag
	mu sync.Mutex

	// loaded is set once the one-shot attempt has completed
	loaded bool
}

// NewLoader creates a Loader for family backed by the given locators. A
// single locator loads as a lone font; multiple locators load as a family
// in input order.
//
// Without a WithClient option the Loader builds its own Client from the
// remaining options.
func NewLoader(family string, locators []string, opts ...LoaderOption) (*Loader, error) {
	options := DefaultLoaderOptions()
	for _, opt := range opts {
		opt(options)
	}

	if family == "" {
		return nil, fmt.Errorf("font family cannot be empty")
	}
	if len(locators) == 0 {
		return nil, fmt.Errorf("at least one locator is required")
	}
	for i, locator := range locators {
		if locator == "" {
			return nil, fmt.Errorf("%w: locator %d is empty", ErrInvalidLocator, i)
		}
	}

	client := options.Client
	if client == nil {
		var clientOpts []ClientOption
		if options.MaxObjects > 0 {
			clientOpts = append(clientOpts, WithMaxCacheObjects(options.MaxObjects))
		}
		if options.Staleness > 0 {
			clientOpts = append(clientOpts, WithStalenessPeriod(options.Staleness))
		}
		if options.Registry != nil {
			clientOpts = append(clientOpts, WithRegistry(options.Registry))
		}
		if options.Logger != nil {
			clientOpts = append(clientOpts, WithLogger(options.Logger))
		}

		var err error
		client, err = NewWithOptions(clientOpts...)
		if err != nil {
			return nil, err
		}
	}

	return &Loader{
		family:   family,
		locators: append([]string(nil), locators...),
		client:   client,
	}, nil
}

// Load performs the one-shot load: serve the family from the cache when
// every member is present, otherwise fetch only the missing members and
// load from the cache again. The retry happens exactly once; its failure is
// the caller's failure.
//
// Load consumes the Loader on completion, success or not. A second call
// returns ErrAlreadyLoaded without touching the cache or the network.
func (l *Loader) Load(ctx context.Context) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return nil, newFontError("load", l.family, ErrAlreadyLoaded)
	}
	defer func() { l.loaded = true }()

	blobs, err := l.loadFromCache(ctx)
	if err == nil {
		return blobs, nil
	}
	if !errors.Is(err, ErrMissingFamilyMember) {
		return nil, err
	}

	// Fetch only what the cache is missing, then load once more.
	for _, locator := range l.locators {
		ok, err := l.client.CanLoadFont(ctx, locator)
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}
		if _, err := l.client.CacheFont(ctx, locator); err != nil {
			return nil, err
		}
	}

	return l.loadFromCache(ctx)
}

// Loaded reports whether the one-shot attempt has already run.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Family returns the font family name this Loader serves.
func (l *Loader) Family() string {
	return l.family
}

// loadFromCache loads the family purely from the cache, mapping a
// single-font miss to the same ErrMissingFamilyMember a family miss
// produces so Load has one signal to branch on.
func (l *Loader) loadFromCache(ctx context.Context) ([][]byte, error) {
	if len(l.locators) == 1 {
		locator := l.locators[0]
		data, ok, err := l.client.LoadCachedFont(ctx, locator, l.family)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newFontError("load", locator,
				fmt.Errorf("%w: %s", ErrMissingFamilyMember, shortName(locator)))
		}
		return [][]byte{data}, nil
	}
	return l.client.LoadCachedFamily(ctx, l.locators, l.family)
}
