package connector

import (
	"fmt"

	"github.com/kinokawa/feedsync/internal/domain"
)

// Registry resolves connectors by platform id. Registration happens
// once during process start; lookups are read-only after that.
type Registry struct {
	connectors map[string]domain.Connector
}

func NewRegistry(connectors ...domain.Connector) *Registry {
	r := &Registry{
		connectors: make(map[string]domain.Connector, len(connectors)),
	}
	for _, c := range connectors {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c domain.Connector) {
	r.connectors[c.PlatformID()] = c
}

// Get returns the connector for a platform. An unknown platform is a
// configuration error, not a retry condition.
func (r *Registry) Get(platformID string) (domain.Connector, error) {
	c, ok := r.connectors[platformID]
	if !ok {
		return nil, domain.ConfigurationError{
			Detail: fmt.Sprintf("no connector registered for platform %q", platformID),
		}
	}
	return c, nil
}

func (r *Registry) List() []domain.Connector {
	out := make([]domain.Connector, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c)
	}
	return out
}
