package sink

import (
	"strings"
	"time"

	"bookingsync/pkg/models"
)

const (
	flightMissingMarker = "⚠️ Missing"
	flightPresentMarker = "N/A"

	serviceSeeoff    = "SEEOFF"
	serviceFastTrack = "FAST TRACK"
)

// Row is one bookings-table row, shaped the way the operations sheet reads
// it: departure legs are see-off service, everything else is fast track, and
// a leg whose flight could not be resolved carries a visible missing marker.
type Row struct {
	OrderID       string
	Direction     models.Direction
	Platform      string
	TravelerName  string
	Adults        int
	Children      int
	FlightNo      string
	Airport       string
	ScheduledTime string
	ScheduledDate string
	Contact       string
	ServiceTier   string
	Service       string
	FlightMarker  string
	DateOfUse     string
	Prices        map[string]float64
	BookingDate   time.Time
}

func buildRow(record models.BookingDetail) Row {
	row := Row{
		OrderID:      record.OrderID,
		Direction:    record.Direction,
		Platform:     record.Platform,
		TravelerName: record.TravelerName,
		Adults:       record.Adults,
		Children:     record.Children,
		FlightNo:     record.FlightNo,
		Airport:      record.Airport,
		Contact:      record.Contact,
		ServiceTier:  record.ServiceTier,
		DateOfUse:    record.DateOfUse,
		Prices:       record.Prices,
		BookingDate:  record.BookingDate,
	}

	if record.Flight != nil && record.Flight.InfoFound {
		if row.Airport == "" {
			row.Airport = record.Flight.Airport
		}
		// Tracker times come as "14:30 +07"; keep the clock part.
		row.ScheduledTime = firstField(record.Flight.ScheduledTime)
		row.ScheduledDate = record.Flight.ScheduledDate
	}

	if row.Airport == "" {
		row.FlightMarker = flightMissingMarker
	} else {
		row.FlightMarker = flightPresentMarker
	}

	if record.Direction == models.DirectionDeparture {
		row.Service = serviceSeeoff
	} else {
		row.Service = serviceFastTrack
	}

	return row
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
