package contracts

import "time"

// SellerLocationMessage is emitted for every accepted seller location update.
// Exchange: ExchangeSellerLocationFanout (fanout, no routing key); also relayed between
// service instances.
type SellerLocationMessage struct {
	UserID    string    `json:"user_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
