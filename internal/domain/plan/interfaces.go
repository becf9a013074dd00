package plan

import "context"

// Source returns the load plan staged for a device.
type Source interface {
	Fetch(ctx context.Context, deviceID string) (*Order, error)
}
