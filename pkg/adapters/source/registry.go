package source

import (
	"context"
	"fmt"
	"sync"
)

// AdapterInfo describes a registered adapter for UI discovery.
type AdapterInfo struct {
	Type        string `json:"type"`         // "mysql", "postgres", "mssql"
	DisplayName string `json:"display_name"` // "MySQL / MariaDB"
	Description string `json:"description"`
}

// Registration contains info + factory for creating connectors.
type Registration struct {
	Info    AdapterInfo
	Factory func(ctx context.Context, config map[string]any) (Connector, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// Open creates a connector for the given source type from a generic config map.
func Open(ctx context.Context, sourceType string, config map[string]any) (Connector, error) {
	registryMu.RLock()
	reg, ok := registry[sourceType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported source type %q", sourceType)
	}
	return reg.Factory(ctx, config)
}

// RegisteredAdapters returns info for all registered adapters.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(sourceType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[sourceType]
	return ok
}
