package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hostel-engine/billing"
)

// =============================================================================
// PARSING TESTS
// =============================================================================

func TestParseMoney(t *testing.T) {
	// GIVEN: Decimal strings as stored in amount columns
	// WHEN: Parsing them
	// THEN: Valid values round-trip exactly; malformed input is an error,
	//       never a silent zero

	m, err := billing.ParseMoney("15000.10")
	require.NoError(t, err)
	assert.Equal(t, "15000.10", m.String())

	m, err = billing.ParseMoney("-1935.48")
	require.NoError(t, err)
	assert.Equal(t, "-1935.48", m.String())

	_, err = billing.ParseMoney("not-a-number")
	require.Error(t, err)

	_, err = billing.ParseMoney("")
	require.Error(t, err)
}

func TestMustParseMoney_PanicsOnMalformedInput(t *testing.T) {
	assert.Panics(t, func() { billing.MustParseMoney("garbage") })
	assert.NotPanics(t, func() { billing.MustParseMoney("0.01") })
}

// =============================================================================
// ROUNDING TESTS
// =============================================================================

func TestMoney_Round2_IsTheOnlyRounding(t *testing.T) {
	// GIVEN: A full-precision intermediate value (15000/31 daily rate)
	// WHEN: Multiplying by 17 days and rounding once at emission
	// THEN: The result matches the hand-computed segment amount

	daily := billing.NewMoneyFromInt(15000).DivInt(31)
	amount := daily.MulInt(17).Round2()
	assert.Equal(t, "8225.81", amount.String())
}
