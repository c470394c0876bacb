package bookstore

const (
	TopicLedger = "bookstore.ledger"
)

// Partition key = affected account (or order) id, so one wallet's entries
// stay in order.
func PartitionKey(id string) []byte { return []byte(id) }
