package service

import "lavka/internal/domain"

// InvoiceComposer выводит счёт из заказа, платежа и позиций.
// Чистая функция от своих аргументов, без побочных эффектов:
// vat_amount = sub_total * vat_percent / 100, net_amount = sub_total + vat_amount,
// строка счёта: total = unit_price * quantity - discount_amount.
type InvoiceComposer struct{}

func (InvoiceComposer) Compose(order *domain.Order, payment *domain.Payment,
	lines []domain.OrderLineItem, subTotal, vatPercent float64) (domain.Invoice, []domain.InvoiceLineItem) {

	vatAmount := subTotal * vatPercent / 100
	inv := domain.Invoice{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		PaymentID:  payment.ID,
		SubTotal:   subTotal,
		VATPercent: vatPercent,
		VATAmount:  vatAmount,
		NetAmount:  subTotal + vatAmount,
	}

	items := make([]domain.InvoiceLineItem, 0, len(lines))
	for _, ln := range lines {
		gross := ln.UnitPrice * float64(ln.Quantity)
		pct := 0.0
		if gross > 0 {
			pct = ln.Discount / gross * 100
		}
		items = append(items, domain.InvoiceLineItem{
			ProductID:       ln.ProductID,
			Quantity:        ln.Quantity,
			UnitPrice:       ln.UnitPrice,
			DiscountPercent: pct,
			DiscountAmount:  ln.Discount,
			Total:           gross - ln.Discount,
		})
	}
	return inv, items
}
