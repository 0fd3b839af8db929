package service

import (
	"context"
	"encoding/json"

	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"
	"marketplace/internal/ports"
)

// locationFeed forwards accepted seller locations to the fanout exchange.
type locationFeed struct {
	logger *logger.Logger
	pub    ports.MessagePublisher
}

// NewLocationFeed adapts a MessagePublisher to ports.SellerLocationPublisher.
func NewLocationFeed(pub ports.MessagePublisher, logger *logger.Logger) ports.SellerLocationPublisher {
	return &locationFeed{logger: logger, pub: pub}
}

// PublishSellerLocation publishes msg to seller_location_fanout. Fanout ignores routing keys.
func (feed *locationFeed) PublishSellerLocation(ctx context.Context, msg contracts.SellerLocationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := feed.pub.Publish(contracts.ExchangeSellerLocationFanout, "", body); err != nil {
		return err
	}

	feed.logger.Debug(ctx, "seller_location_published", "Broadcasted seller location to RabbitMQ", map[string]any{
		"user_id": msg.UserID,
		"lat":     msg.Lat,
		"lng":     msg.Lng,
	})
	return nil
}
