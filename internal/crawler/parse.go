package crawler

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	flightNoPattern = regexp.MustCompile(`[A-Z]{1,3}\s?\d{1,4}[A-Z]?`)
	airportPattern  = regexp.MustCompile(`(?i)([A-Za-z\s]+?)(?: International Airport| Airport)`)
	pricePattern    = regexp.MustCompile(`([A-Z]{3})\s*([\d,]+)`)
	paxAdultPattern = regexp.MustCompile(`Adult X (\d+)`)
	paxChildPattern = regexp.MustCompile(`Child X (\d+)`)
	useDatePattern  = regexp.MustCompile(`^(\d{2})-([A-Za-z]{3})-(\d{4})$`)
)

var monthNumbers = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// formatDepartureDate shortens "03-Dec-2025" to "03/12". Anything else
// collapses to "".
func formatDepartureDate(raw string) string {
	m := useDatePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	month, ok := monthNumbers[strings.ToLower(m[2])]
	if !ok {
		return ""
	}
	return m[1] + "/" + month
}

func extractFlightNo(text string) string {
	return flightNoPattern.FindString(text)
}

func extractAirport(text string) string {
	return strings.TrimSpace(airportPattern.FindString(text))
}

// splitDateTime separates "25-12-2025 14:30" (non-breaking spaces included)
// into its date and time halves.
func splitDateTime(raw string) (date, timeOfDay string) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, " ", " "))
	parts := strings.Fields(cleaned)
	if len(parts) > 0 {
		date = parts[0]
	}
	if len(parts) > 1 {
		timeOfDay = parts[1]
	}
	return date, timeOfDay
}

// parsePrices collects "CUR 1,234" amounts keyed by currency code.
func parsePrices(texts []string) map[string]float64 {
	prices := make(map[string]float64)
	for _, text := range texts {
		m := pricePattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			continue
		}
		prices[m[1]] = amount
	}
	return prices
}

func parsePaxCount(pattern *regexp.Regexp, text string) int {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
