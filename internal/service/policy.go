package service

import "lavka/internal/domain"

// PaymentMethodPolicy делит способы оплаты на синхронные и асинхронные.
// Синхронный способ рассчитывается сразу: счёт и прочие артефакты создаются
// в той же транзакции, что и заказ. Асинхронный ждёт внешнего подтверждения,
// платёж остаётся Pending с пустым transaction id.
type PaymentMethodPolicy struct{}

func (PaymentMethodPolicy) Synchronous(m domain.PaymentMethod) bool {
	switch m {
	case domain.MethodCash:
		return true
	case domain.MethodYoomoney, domain.MethodQiwi, domain.MethodBankTransfer,
		domain.MethodCoupon, domain.MethodCard:
		return false
	}
	return false
}
