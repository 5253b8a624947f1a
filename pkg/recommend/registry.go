package recommend

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// FilterFactory builds a filter from the argument after the colon in a
// filter spec such as "min_score:0.7". arg is empty when no colon is given.
type FilterFactory func(arg string) (Filter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]FilterFactory{}
)

func init() {
	RegisterFilter("min_score", func(arg string) (Filter, error) {
		if arg == "" {
			return MinScoreFilter{Min: DefaultMinScore}, nil
		}
		threshold, err := strconv.ParseFloat(arg, 64)
		if err != nil || threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("min_score: threshold must be a number in [0,1], got %q", arg)
		}
		return MinScoreFilter{Min: threshold}, nil
	})
	RegisterFilter("genre", func(arg string) (Filter, error) {
		if arg == "" {
			return nil, fmt.Errorf("genre: a genre is required")
		}
		return GenreFilter{Genre: arg}, nil
	})
}

// RegisterFilter makes a filter kind available to ParseFilter. Registering
// a name twice replaces the earlier factory.
func RegisterFilter(name string, factory FilterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// FilterNames lists the registered filter kinds.
func FilterNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ParseFilter builds a filter from a "name[:arg]" spec.
func ParseFilter(spec string) (Filter, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", name)
	}
	return factory(strings.TrimSpace(arg))
}

// ParseFilters builds filters in the given order.
func ParseFilters(specs []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(specs))
	for _, spec := range specs {
		f, err := ParseFilter(spec)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}
