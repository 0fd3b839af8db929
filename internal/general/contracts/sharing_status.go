package contracts

import "time"

// SellerSharingMessage is published when a seller toggles location sharing.
// Routing key: "seller.sharing.{user_id}" on ExchangeSellerTopic.
type SellerSharingMessage struct {
	UserID    string    `json:"user_id"`
	Sharing   bool      `json:"sharing"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
