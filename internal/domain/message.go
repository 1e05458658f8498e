package domain

// Delivery is the outcome of an outbound text message. Delivery failures are
// reported here, never as errors, so flows keep going.
type Delivery struct {
	OK          bool
	MessageID   int
	Description string
}

// DeleteResult is the outcome of deleting a previously sent message.
type DeleteResult struct {
	Success bool
	Error   string
}
