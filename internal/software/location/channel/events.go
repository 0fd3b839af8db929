package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	"marketplace/internal/domain/geo"
	"marketplace/internal/general/contracts"
)

// LocationUpdate is the inbound updateLocation payload.
type LocationUpdate struct {
	UserID string
	Point  geo.Point
}

// SellerLocationUpdate is the outbound sellerLocationUpdate payload.
type SellerLocationUpdate = contracts.WSLocationUpdate

// DecodeLocationUpdate parses and validates {"userId","lat","lng"}.
func DecodeLocationUpdate(data json.RawMessage) (LocationUpdate, error) {
	var raw struct {
		UserID string   `json:"userId"`
		Lat    *float64 `json:"lat"`
		Lng    *float64 `json:"lng"`
	}
	if len(data) == 0 {
		return LocationUpdate{}, fmt.Errorf("%w: empty payload", ErrInvalidLocation)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return LocationUpdate{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if strings.TrimSpace(raw.UserID) == "" {
		return LocationUpdate{}, fmt.Errorf("%w: missing userId", ErrInvalidLocation)
	}
	if raw.Lat == nil || raw.Lng == nil {
		return LocationUpdate{}, fmt.Errorf("%w: missing coordinates", ErrInvalidLocation)
	}

	p, err := geo.NewPoint(*raw.Lat, *raw.Lng)
	if err != nil {
		return LocationUpdate{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	return LocationUpdate{UserID: raw.UserID, Point: p}, nil
}
