package payments

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	raw := json.RawMessage(`{
		"ticketSelections": [
			{"categoryId": "2f6f0f1e-8c3c-4d43-9b8e-7d1f6b1e2a10", "quantity": 2},
			{"categoryId": "9a1c7c55-2d0e-4f5b-8a8e-3c7b9c0e4d21", "quantity": 1}
		],
		"discountAmount": 300,
		"installments": 3,
		"interestAmount": 450,
		"couponCode": "EARLY"
	}`)

	metadata, err := ParseMetadata("tx-1", raw)
	require.NoError(t, err)
	assert.Len(t, metadata.TicketSelections, 2)
	assert.Equal(t, 3, metadata.TotalUnits())
	assert.Equal(t, int64(300), metadata.DiscountAmount)
	assert.Equal(t, int64(450), metadata.InterestAmount)
	assert.Equal(t, "EARLY", metadata.CouponCode)
}

func TestParseMetadata_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":              ``,
		"null":               `null`,
		"not json":           `{"ticketSelections":`,
		"missing selections": `{"discountAmount": 10}`,
		"empty selections":   `{"ticketSelections": []}`,
		"zero quantity":      `{"ticketSelections": [{"categoryId": "2f6f0f1e-8c3c-4d43-9b8e-7d1f6b1e2a10", "quantity": 0}]}`,
		"missing category":   `{"ticketSelections": [{"quantity": 1}]}`,
		"bad category id":    `{"ticketSelections": [{"categoryId": "nope", "quantity": 1}]}`,
		"negative discount":  `{"ticketSelections": [{"categoryId": "2f6f0f1e-8c3c-4d43-9b8e-7d1f6b1e2a10", "quantity": 1}], "discountAmount": -5}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMetadata("tx-1", json.RawMessage(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedSelections)

			var malformed *MalformedSelectionsError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, "tx-1", malformed.TransactionID)
			assert.NotEmpty(t, malformed.Reason)
		})
	}
}

func TestReadAmounts(t *testing.T) {
	discount, interest := ReadAmounts(json.RawMessage(`{"discountAmount": 200, "interestAmount": 90}`))
	assert.Equal(t, int64(200), discount)
	assert.Equal(t, int64(90), interest)

	discount, interest = ReadAmounts(json.RawMessage(`garbage`))
	assert.Zero(t, discount)
	assert.Zero(t, interest)
}
