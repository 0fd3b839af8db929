package contracts

import "encoding/json"

// WSFrame is the envelope of every channel frame in both directions:
// {"event":"updateLocation","data":{...}}.
type WSFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSOutFrame is the outbound form of WSFrame; Data is marshalled as-is.
type WSOutFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WSLocationUpdate is the payload of both updateLocation and sellerLocationUpdate.
type WSLocationUpdate struct {
	UserID string  `json:"userId"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}
