package types

// Event is the generic payload handed to downstream consumers for every state
// transition. Attributes carry monetary values as decimal strings.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
