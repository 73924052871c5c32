// Package store is a registry of content store backends.
// Each backend registers a Factory under a type name in its init function;
// a program selects one at run time from a config map
// by importing the backend for its side effects
// and calling Create.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/vs"
)

// Factory creates a store from its config.
type Factory func(context.Context, map[string]interface{}) (vs.Store, error)

var registry = make(map[string]Factory)

// Register makes a backend available to Create under key.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create creates a store of the type registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (vs.Store, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// CreateNested creates the store described by the "nested" map in conf.
// It is for backends that wrap another store.
func CreateNested(ctx context.Context, conf map[string]interface{}) (vs.Store, error) {
	nested, ok := conf["nested"].(map[string]interface{})
	if !ok {
		return nil, errors.New(`missing "nested" parameter`)
	}
	nestedType, ok := nested["type"].(string)
	if !ok {
		return nil, errors.New(`"nested" parameter missing "type"`)
	}
	s, err := Create(ctx, nestedType, nested)
	return s, errors.Wrap(err, "creating nested store")
}

// Types lists the registered backend names.
func Types() []string {
	result := make([]string, 0, len(registry))
	for k := range registry {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
