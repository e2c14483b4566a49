package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lavka/internal/domain"
)

func TestInvoiceComposer_VATArithmetic(t *testing.T) {
	order := &domain.Order{ID: 7, CustomerID: 3, TotalPrice: 700}
	payment := &domain.Payment{ID: 11}
	lines := []domain.OrderLineItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 200, Discount: 0},
		{ProductID: 2, Quantity: 1, UnitPrice: 300, Discount: 100},
	}

	inv, items := InvoiceComposer{}.Compose(order, payment, lines, 700, 15)

	assert.Equal(t, int64(7), inv.OrderID)
	assert.Equal(t, int64(3), inv.CustomerID)
	assert.Equal(t, int64(11), inv.PaymentID)
	assert.InEpsilon(t, 700.0, inv.SubTotal, 1e-6)
	assert.InEpsilon(t, 105.0, inv.VATAmount, 1e-6) // 700 * 15%
	assert.InEpsilon(t, 805.0, inv.NetAmount, 1e-6)

	if assert.Len(t, items, 2) {
		assert.InEpsilon(t, 400.0, items[0].Total, 1e-6)
		assert.InDelta(t, 0.0, items[0].DiscountPercent, 1e-6)

		// скидка 100 от брутто 300 = 33.33%
		assert.InEpsilon(t, 200.0, items[1].Total, 1e-6)
		assert.InEpsilon(t, 100.0/300.0*100, items[1].DiscountPercent, 1e-6)
		assert.InEpsilon(t, 100.0, items[1].DiscountAmount, 1e-6)
	}
}

func TestInvoiceComposer_ZeroVAT(t *testing.T) {
	inv, _ := InvoiceComposer{}.Compose(&domain.Order{ID: 1}, &domain.Payment{ID: 1}, nil, 500, 0)
	assert.InDelta(t, 0.0, inv.VATAmount, 1e-6)
	assert.InEpsilon(t, 500.0, inv.NetAmount, 1e-6)
}

func TestInvoiceComposer_FreeLineKeepsZeroPercent(t *testing.T) {
	lines := []domain.OrderLineItem{{ProductID: 1, Quantity: 1, UnitPrice: 0, Discount: 0}}
	_, items := InvoiceComposer{}.Compose(&domain.Order{ID: 1}, &domain.Payment{ID: 1}, lines, 0, 15)
	assert.InDelta(t, 0.0, items[0].DiscountPercent, 1e-6)
	assert.InDelta(t, 0.0, items[0].Total, 1e-6)
}

func TestPaymentMethodPolicy_OnlyCashIsSynchronous(t *testing.T) {
	policy := PaymentMethodPolicy{}
	assert.True(t, policy.Synchronous(domain.MethodCash))
	for _, m := range []domain.PaymentMethod{
		domain.MethodYoomoney, domain.MethodQiwi, domain.MethodBankTransfer,
		domain.MethodCoupon, domain.MethodCard,
	} {
		assert.False(t, policy.Synchronous(m), string(m))
	}
}
