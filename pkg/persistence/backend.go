package persistence

import (
	"fmt"
	"strings"
)

// Backend selects the storage engine of a service.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// ParseBackend accepts "postgres" and "mongo" (case-insensitive). Empty means postgres.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendPostgres:
		return BackendPostgres, nil
	case BackendMongo:
		return BackendMongo, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q", s)
	}
}
