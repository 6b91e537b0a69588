package datasource

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Dialect)
)

// Register is called by each dialect package's init() function.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Info().Type] = d
}

// Lookup returns the dialect registered for dsType.
func Lookup(dsType string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := registry[dsType]
	if !ok {
		return nil, fmt.Errorf("datasource type %q: %w", dsType, apperrors.ErrUnsupportedDialect)
	}
	return d, nil
}

// RegisteredDialects returns info for all registered dialects, sorted by type.
func RegisteredDialects() []DialectInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DialectInfo, 0, len(registry))
	for _, d := range registry {
		result = append(result, d.Info())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if a dialect type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
