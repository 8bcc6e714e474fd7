package domain

// Message kinds carried on the jobs exchange between api-service and
// worker-service.
const (
	MessageKindMatchRequest  = "match_request"
	MessageKindOfferResponse = "offer_response"
)

// Offer response outcomes
const (
	OfferOutcomeAccept  = "accept"
	OfferOutcomeDecline = "decline"
)

// JobMessage is the envelope published to RabbitMQ. VendorID and
// Outcome are set only for offer responses.
type JobMessage struct {
	Kind        string `json:"kind"`
	JobID       string `json:"job_id"`
	VendorID    string `json:"vendor_id,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	DeliveryTag uint64 `json:"-"`
}
