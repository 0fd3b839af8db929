package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain/user"
	"marketplace/internal/general/contracts"
	"marketplace/internal/ports"
)

const (
	msgActivated   = "Location sharing activated"
	msgDeactivated = "Location sharing deactivated"
)

// Activate turns location sharing on for a seller.
func (service *sharingService) Activate(ctx context.Context, userID string) (ports.SharingResult, error) {
	return service.toggle(ctx, userID, true)
}

// Deactivate turns location sharing off and clears the last known location.
func (service *sharingService) Deactivate(ctx context.Context, userID string) (ports.SharingResult, error) {
	return service.toggle(ctx, userID, false)
}

func (service *sharingService) toggle(ctx context.Context, userID string, enabled bool) (ports.SharingResult, error) {
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		u, err := service.users.FindByID(ctx, userID)
		if errors.Is(err, user.ErrNotFound) {
			return ErrUnauthorized
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if !u.IsSeller() {
			return ErrUnauthorized
		}

		if err := service.users.SetSharing(ctx, userID, enabled); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return ErrUnauthorized
			}
			return fmt.Errorf("set sharing: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			service.logger.Error(ctx, "sharing_toggle_failed", "Failed to toggle location sharing", err,
				map[string]any{"user_id": userID, "sharing": enabled})
		}
		return ports.SharingResult{}, err
	}

	msg := msgDeactivated
	if enabled {
		msg = msgActivated
	}

	service.logger.Info(ctx, "sharing_toggled", msg, map[string]any{
		"user_id": userID,
		"sharing": enabled,
	})

	// best effort; the flag is already committed
	if err := service.publishSharing(ctx, contracts.SellerSharingMessage{
		UserID:    userID,
		Sharing:   enabled,
		Timestamp: time.Now().UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: generateCorrelationID(),
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}); err != nil {
		service.logger.Warn(ctx, "sharing_publish_failed", "Failed to publish sharing status", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	return ports.SharingResult{UserID: userID, Sharing: enabled, Message: msg}, nil
}

// SellerLocation returns the sharing flag and last known position of a seller.
func (service *sharingService) SellerLocation(ctx context.Context, userID string) (ports.SellerLocationView, error) {
	u, err := service.users.FindByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return ports.SellerLocationView{}, ErrSellerNotFound
	}
	if err != nil {
		return ports.SellerLocationView{}, fmt.Errorf("find user: %w", err)
	}
	if !u.IsSeller() {
		return ports.SellerLocationView{}, ErrSellerNotFound
	}

	view := ports.SellerLocationView{UserID: u.ID, Sharing: u.LocationSharing}
	if u.LocationSharing {
		view.LastLocation = u.LastLocation
	}
	return view, nil
}
