package journal

// ListOptions provides filtering options for listing journal entries.
type ListOptions struct {
	OrderID string
	Type    *EntryType
	Limit   int
	Offset  int
}
