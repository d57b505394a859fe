package types

// Event represents a typed notification emitted during ledger state
// transitions. Attributes carry the affected deal, parties and amounts as
// canonical strings.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
