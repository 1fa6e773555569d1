package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bookingsync/pkg/models"
)

func baseRecord() models.BookingDetail {
	return models.BookingDetail{
		OrderID:      "1234567890123456",
		Platform:     "CTRIP",
		TravelerName: "NGUYEN VAN A",
		Adults:       2,
		FlightNo:     "VN 123",
		Direction:    models.DirectionArrival,
		Airport:      "Tan Son Nhat International Airport",
		Contact:      "WhatsApp +84909000111",
		ServiceTier:  "PREMIUM",
		DateOfUse:    "03-Dec-2025",
		BookingDate:  time.Date(2025, 12, 24, 8, 0, 0, 0, time.UTC),
	}
}

func TestBuildRowArrival(t *testing.T) {
	row := buildRow(baseRecord())

	assert.Equal(t, serviceFastTrack, row.Service)
	assert.Equal(t, flightPresentMarker, row.FlightMarker)
	assert.Equal(t, "Tan Son Nhat International Airport", row.Airport)
	assert.Equal(t, models.DirectionArrival, row.Direction)
}

func TestBuildRowDepartureIsSeeoff(t *testing.T) {
	record := baseRecord()
	record.Direction = models.DirectionDeparture

	row := buildRow(record)
	assert.Equal(t, serviceSeeoff, row.Service)
}

func TestBuildRowMissingFlightMarker(t *testing.T) {
	record := baseRecord()
	record.Airport = ""
	record.Flight = nil

	row := buildRow(record)
	assert.Equal(t, flightMissingMarker, row.FlightMarker)
	assert.Empty(t, row.Airport)
}

func TestBuildRowFlightInfoFillsGaps(t *testing.T) {
	record := baseRecord()
	record.Airport = ""
	record.Flight = &models.FlightInfo{
		FlightNo:      "VN 123",
		Airport:       "Noi Bai International Airport",
		ScheduledTime: "16:45 +07",
		ScheduledDate: "25-Dec-2025",
		InfoFound:     true,
	}

	row := buildRow(record)
	assert.Equal(t, "Noi Bai International Airport", row.Airport)
	assert.Equal(t, "16:45", row.ScheduledTime)
	assert.Equal(t, "25-Dec-2025", row.ScheduledDate)
	assert.Equal(t, flightPresentMarker, row.FlightMarker)
}

func TestBuildRowFlightMissNotTrusted(t *testing.T) {
	record := baseRecord()
	record.Airport = ""
	record.Flight = &models.FlightInfo{FlightNo: "VN 123", InfoFound: false}

	row := buildRow(record)
	assert.Equal(t, flightMissingMarker, row.FlightMarker)
	assert.Empty(t, row.ScheduledTime)
}

func TestBuildRowCrawlerAirportWins(t *testing.T) {
	record := baseRecord()
	record.Flight = &models.FlightInfo{
		Airport:   "Somewhere Else Airport",
		InfoFound: true,
	}

	row := buildRow(record)
	assert.Equal(t, "Tan Son Nhat International Airport", row.Airport)
}
