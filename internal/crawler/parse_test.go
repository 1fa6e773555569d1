package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDepartureDate(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"03-Dec-2025", "03/12"},
		{"25-jan-2026", "25/01"},
		{" 07-Aug-2025 ", "07/08"},
		{"2025-12-03", ""},
		{"03-Foo-2025", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatDepartureDate(tt.raw), "raw=%q", tt.raw)
	}
}

func TestExtractFlightNo(t *testing.T) {
	assert.Equal(t, "VN 123", extractFlightNo("Flight VN 123 departs soon"))
	assert.Equal(t, "VJ1624", extractFlightNo("VJ1624 from SGN"))
	assert.Equal(t, "", extractFlightNo("no flight here"))
}

func TestExtractAirport(t *testing.T) {
	assert.Equal(t, "Tan Son Nhat International Airport",
		extractAirport("[PREMIUM] Tan Son Nhat International Airport VIP Fast Track (Departure)"))
	assert.Equal(t, "Noi Bai Airport", extractAirport("(Arrival) Noi Bai Airport Fast Track"))
	assert.Equal(t, "", extractAirport("downtown meeting point"))
}

func TestSplitDateTime(t *testing.T) {
	date, tod := splitDateTime("25-12-2025 14:30")
	assert.Equal(t, "25-12-2025", date)
	assert.Equal(t, "14:30", tod)

	date, tod = splitDateTime("  03-01-2026 ")
	assert.Equal(t, "03-01-2026", date)
	assert.Equal(t, "", tod)

	date, tod = splitDateTime("")
	assert.Equal(t, "", date)
	assert.Equal(t, "", tod)
}

func TestParsePrices(t *testing.T) {
	prices := parsePrices([]string{"USD 1,250", "VND 2,500,000", "no price"})
	assert.Equal(t, map[string]float64{"USD": 1250, "VND": 2500000}, prices)
}
