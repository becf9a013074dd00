package fulfillment

import "context"

// EvidenceSource returns the placement image references for an item type.
type EvidenceSource interface {
	Images(ctx context.Context, itemID string) ([]string, error)
}

// Notifier is told when a device's order completes. It is called outside the
// device's mutation lock.
type Notifier interface {
	OrderCompleted(ctx context.Context, deviceID, orderID string)
}
