package orders

const (
	TopicOrderPlaced    = "order.placed"
	TopicIncomeRecorded = "income.recorded"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
