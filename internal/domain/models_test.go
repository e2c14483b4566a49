package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeliveryLocation(t *testing.T) {
	addr, err := ParseDeliveryLocation("Tverskaya 7, 125009, Moscow, Moscow, RU")
	require.NoError(t, err)
	assert.Equal(t, Address{
		Street:  "Tverskaya 7",
		ZipCode: "125009",
		City:    "Moscow",
		State:   "Moscow",
		Country: "RU",
	}, addr)

	// пробелы вокруг запятых не мешают разбору
	addr, err = ParseDeliveryLocation("Nevsky 1,190000,Saint Petersburg,SPB,RU")
	require.NoError(t, err)
	assert.Equal(t, "Saint Petersburg", addr.City)

	for _, bad := range []string{
		"",
		"Moscow",
		"a, b, c, d",          // четыре поля
		"a, b, c, d, e, f",    // шесть полей
		"a, , c, d, e",        // пустое поле
		"a, b, c, d,      ",   // пустой хвост
	} {
		_, err := ParseDeliveryLocation(bad)
		assert.ErrorIs(t, err, ErrInvalidLocation, bad)
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("CASH")
	require.NoError(t, err)
	assert.Equal(t, MethodCash, m)

	m, err = ParsePaymentMethod("  bank_transfer ")
	require.NoError(t, err)
	assert.Equal(t, MethodBankTransfer, m)

	_, err = ParsePaymentMethod("bitcoin")
	assert.Error(t, err)
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("AwaitingDelivery")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusAwaitingDelivery, st)

	_, err = ParseOrderStatus("awaitingdelivery")
	assert.Error(t, err)
	_, err = ParseOrderStatus("")
	assert.Error(t, err)
}
