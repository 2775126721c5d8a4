package scan

import "context"

// Scanner wraps the host's wireless listing utility.
type Scanner interface {
	// ListNetworks returns the raw text of the visible network list.
	ListNetworks(ctx context.Context) (string, error)
	// InterfaceStatus returns the raw text describing the associated network.
	InterfaceStatus(ctx context.Context) (string, error)
}
