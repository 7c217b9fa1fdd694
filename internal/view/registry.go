package view

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// DefaultMaxViews bounds a registry built with a non-positive size
const DefaultMaxViews = 256

// Registry is a bounded set of views; the least recently used view is evicted
type Registry struct {
	views *lru.Cache[string, *View]
}

// NewRegistry creates a registry holding at most size views
func NewRegistry(size int) *Registry {
	if size <= 0 {
		size = DefaultMaxViews
	}

	cache, err := lru.NewWithEvict(size, func(id string, v *View) {
		log.Info().Str("view", id).Msg("view evicted")
	})
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}

	return &Registry{views: cache}
}

// Create adds a new idle view
func (r *Registry) Create(tab Tab) *View {
	v := New(tab)
	r.views.Add(v.ID(), v)
	log.Debug().Str("view", v.ID()).Str("tab", string(tab)).Msg("view created")
	return v
}

// Get returns a view by id and marks it recently used
func (r *Registry) Get(id string) (*View, bool) {
	return r.views.Get(id)
}

// Remove deletes a view. Any in-flight result for it is dropped.
func (r *Registry) Remove(id string) bool {
	v, ok := r.views.Peek(id)
	if !ok {
		return false
	}
	v.Reset()
	r.views.Remove(id)
	return true
}

// List returns every view, oldest first
func (r *Registry) List() []*View {
	views := r.views.Values()
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].createdAt.Before(views[j].createdAt)
	})
	return views
}

// Len returns the number of live views
func (r *Registry) Len() int {
	return r.views.Len()
}
