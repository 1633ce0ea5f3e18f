// Package kb holds the in-memory registries for towers and links.
package kb

import "github.com/google/uuid"

// Option customises registry construction.
type Option func(*options)

type options struct {
	newID func() string
}

// WithIDGenerator overrides the default UUID-based identifier source.
// Generated IDs must never repeat for the registry's lifetime.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
