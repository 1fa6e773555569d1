package models

import "time"

// Direction marks which side of the trip a booking leg covers.
type Direction string

const (
	DirectionArrival   Direction = "Arrival"
	DirectionDeparture Direction = "Departure"
)

// FlightInfo is the third-party flight-status lookup result for one leg.
// InfoFound is false when the tracker had no data; the record is still
// written, with a missing-flight marker.
type FlightInfo struct {
	FlightNo      string `json:"flight_no"`
	Status        string `json:"status,omitempty"`
	Airport       string `json:"airport,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	InfoFound     bool   `json:"info_found"`
}

// BookingDetail is one normalized output record, one per flight leg.
// Identity is (OrderID, Direction); the sink owns dedup against rows
// already written.
type BookingDetail struct {
	OrderID      string             `json:"order_id" bson:"order_id"`
	Platform     string             `json:"platform" bson:"platform"`
	TravelerName string             `json:"traveler_name" bson:"traveler_name"`
	Adults       int                `json:"adults" bson:"adults"`
	Children     int                `json:"children" bson:"children"`
	FlightNo     string             `json:"flight_no" bson:"flight_no"`
	Direction    Direction          `json:"direction" bson:"direction"`
	Airport      string             `json:"airport" bson:"airport"`
	Contact      string             `json:"contact" bson:"contact"`
	ServiceTier  string             `json:"service_tier" bson:"service_tier"`
	Prices       map[string]float64 `json:"prices,omitempty" bson:"prices,omitempty"`
	BookingDate  time.Time          `json:"booking_date" bson:"booking_date"`
	DateOfUse    string             `json:"date_of_use" bson:"date_of_use"`
	Flight       *FlightInfo        `json:"flight,omitempty" bson:"flight,omitempty"`
}

// OutcomeEvent is published after an item reaches a terminal label.
type OutcomeEvent struct {
	OrderID    string    `json:"order_id"`
	MessageID  string    `json:"message_id"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Records    int       `json:"records"`
	OccurredAt time.Time `json:"occurred_at"`
}
