package integration

import (
	"time"

	"bookingsync/internal/logger"
	"bookingsync/pkg/models"
)

const (
	containerStartupTimeout = 60
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestBooking(orderID string, direction models.Direction) models.BookingDetail {
	return models.BookingDetail{
		OrderID:      orderID,
		Platform:     "CTRIP",
		TravelerName: "NGUYEN VAN A",
		Adults:       2,
		Children:     1,
		FlightNo:     "VN 123",
		Direction:    direction,
		Airport:      "Tan Son Nhat International Airport",
		Contact:      "WhatsApp +84 900 000 000",
		ServiceTier:  "[PREMIUM]",
		Prices:       map[string]float64{"USD": 58},
		BookingDate:  time.Date(2025, 12, 24, 10, 30, 0, 0, time.UTC),
		DateOfUse:    "28-Dec-2025",
	}
}
