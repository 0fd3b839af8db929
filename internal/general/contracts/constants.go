package contracts

// Exchanges
const (
	ExchangeSellerTopic          = "seller_topic"
	ExchangeSellerLocationFanout = "seller_location_fanout"
)

// Queues
const (
	QueueSellerLocationFeed = "seller_location_feed"
	QueueSellerSharing      = "seller_sharing"
)

// Routing patterns
const (
	RouteSellerSharingPrefix = "seller.sharing." // {user_id}
)

// Channel event names
const (
	EventUpdateLocation       = "updateLocation"       // inbound
	EventSellerLocationUpdate = "sellerLocationUpdate" // outbound fan-out
	EventError                = "error"                // outbound unicast
)
