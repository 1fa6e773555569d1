package cel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingsync/pkg/models"
)

func testItem() models.MailItem {
	return models.MailItem{
		MessageID:  "42",
		OrderID:    "1234567890123456",
		Subject:    "Trip.com ANT confirmation 1234567890123456",
		From:       "noreply@trip.com",
		Source:     "tripcom",
		ReceivedAt: time.Date(2025, 12, 24, 10, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateFilter(t *testing.T) {
	evaluator, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name       string
		expression string
		item       models.MailItem
		expected   bool
		expectErr  bool
	}{
		{
			name:       "subject contains marker",
			expression: `subject.contains("Trip.com ANT")`,
			item:       testItem(),
			expected:   true,
		},
		{
			name:       "sender domain match",
			expression: `from.endsWith("@trip.com")`,
			item:       testItem(),
			expected:   true,
		},
		{
			name:       "source and order id length",
			expression: `source == "tripcom" && order_id.size() == 16`,
			item:       testItem(),
			expected:   true,
		},
		{
			name:       "received after horizon",
			expression: `received_at > timestamp("2025-12-23T00:00:00Z")`,
			item:       testItem(),
			expected:   true,
		},
		{
			name:       "non-matching subject",
			expression: `subject.contains("You have a new order")`,
			item:       testItem(),
			expected:   false,
		},
		{
			name:       "invalid expression",
			expression: `subject.`,
			item:       testItem(),
			expectErr:  true,
		},
		{
			name:       "non-bool expression",
			expression: `subject`,
			item:       testItem(),
			expectErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.EvaluateFilter(context.Background(), tt.expression, tt.item)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidateFilterExpression(t *testing.T) {
	evaluator, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, evaluator.ValidateFilterExpression(`subject.contains("Booking ID")`))
	assert.Error(t, evaluator.ValidateFilterExpression(`order_id`))
	assert.Error(t, evaluator.ValidateFilterExpression(`unknown_var == "x"`))
}

func TestCompileFilterReuse(t *testing.T) {
	evaluator, err := NewEvaluator()
	require.NoError(t, err)

	program, err := evaluator.CompileFilter(`order_id != ""`)
	require.NoError(t, err)

	item := testItem()
	for i := 0; i < 3; i++ {
		ok, err := evaluator.EvaluateCompiled(context.Background(), program, item)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	item.OrderID = ""
	ok, err := evaluator.EvaluateCompiled(context.Background(), program, item)
	require.NoError(t, err)
	assert.False(t, ok)
}
