package auction

// Event types pushed to WebSocket subscribers of a lot.
const (
	EventBidPlaced             = "bid_placed"
	EventLotEnded              = "lot_ended"
	EventConnectionEstablished = "connection_established"
	EventError                 = "error"
)

// Event is a JSON message sent to WebSocket clients. Amount is the decimal
// string form of the accepted bid (never a float).
type Event struct {
	Type    string `json:"type"`
	LotID   string `json:"lot_id,omitempty"`
	Bidder  string `json:"bidder,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Message string `json:"message,omitempty"`
}
