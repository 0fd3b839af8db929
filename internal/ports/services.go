package ports

import (
	"context"

	"marketplace/internal/domain/geo"
	"marketplace/internal/general/contracts"
)

// ----- Outbound messaging -----

// MessagePublisher publishes a raw message to an exchange (RabbitMQ in production).
type MessagePublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// SellerLocationPublisher receives every accepted seller location update after local fan-out.
// Implementations: the RabbitMQ location feed and the cross-instance Redis bridge.
type SellerLocationPublisher interface {
	PublishSellerLocation(ctx context.Context, msg contracts.SellerLocationMessage) error
}

// ----- DTOs for the sharing toggle -----

// SharingResult is returned by the activate/deactivate endpoints.
type SharingResult struct {
	UserID  string `json:"userId"`
	Sharing bool   `json:"sharing"`
	Message string `json:"message"`
}

// SellerLocationView is the last known location of a seller.
type SellerLocationView struct {
	UserID       string     `json:"userId"`
	Sharing      bool       `json:"sharing"`
	LastLocation *geo.Point `json:"lastLocation"`
}

// ----- Sharing Service Interface -----

// SharingService exposes the HTTP-side toggle of the per-seller sharing flag.
type SharingService interface {
	Activate(ctx context.Context, userID string) (SharingResult, error)
	Deactivate(ctx context.Context, userID string) (SharingResult, error)
	SellerLocation(ctx context.Context, userID string) (SellerLocationView, error)
}
