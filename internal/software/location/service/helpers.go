package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"marketplace/internal/general/contracts"
)

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return "req_" + time.Now().UTC().Format("20060102T150405") + "_" + hex.EncodeToString(b[:])
}

// publishSharing sends a sharing toggle to seller_topic with key "seller.sharing.{user_id}".
func (service *sharingService) publishSharing(ctx context.Context, msg contracts.SellerSharingMessage) error {
	if service.pub == nil {
		return nil
	}

	routingKey := contracts.RouteSellerSharingPrefix + msg.UserID
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := service.pub.Publish(contracts.ExchangeSellerTopic, routingKey, body); err != nil {
		return err
	}

	service.logger.Debug(ctx, "sharing_status_published", "Published sharing status to RabbitMQ", map[string]any{
		"routing_key": routingKey,
		"user_id":     msg.UserID,
		"sharing":     msg.Sharing,
	})
	return nil
}
