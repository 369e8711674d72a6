package topics

const (
	// Rounds
	RoundEvents = "round_events"

	// Wagers
	WagerPlaced = "wager_placed"

	// DLQs
	RoundEventsDLQ = "round_events_dlq"
)
