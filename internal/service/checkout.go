package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lavka/internal/domain"
	"lavka/internal/metrics"
	"lavka/internal/repository"
)

var ErrInvalidState = errors.New("invalid state")

// CheckoutStage этап оформления, на котором произошёл отказ
type CheckoutStage string

const (
	StageValidate        CheckoutStage = "validate"
	StagePersistOrder    CheckoutStage = "persist_order"
	StagePersistShipment CheckoutStage = "persist_shipment"
	StagePersistPayment  CheckoutStage = "persist_payment"
	StagePersistInvoice  CheckoutStage = "persist_invoice"
	StageMarkProcessed   CheckoutStage = "mark_processed"
	StageReserveStock    CheckoutStage = "reserve_stock"
	StagePersistLines    CheckoutStage = "persist_lines"
	StageConsumeCart     CheckoutStage = "consume_cart"
	StageCommit          CheckoutStage = "commit"
)

// CheckoutError структурная ошибка оформления с указанием этапа
type CheckoutError struct {
	Stage CheckoutStage
	Err   error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed at %s: %v", e.Stage, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// NotificationEvent событие об оформленном заказе для внешнего уведомителя
type NotificationEvent struct {
	OrderID      int64   `json:"order_id"`
	OrderUUID    string  `json:"order_uuid"`
	CustomerName string  `json:"customer_name"`
	TotalAmount  float64 `json:"total_amount"`
}

// Notifier внешний коллаборатор; вызывается строго после коммита,
// его результат никогда не влияет на судьбу заказа.
type Notifier interface {
	Send(ctx context.Context, ev NotificationEvent) error
}

// CheckoutResult сводка успешно оформленного заказа
type CheckoutResult struct {
	OrderID       int64              `json:"order_id"`
	UUID          string             `json:"uuid"`
	TotalPrice    float64            `json:"total_price"`
	TotalQuantity int64              `json:"total_quantity"`
	Status        domain.OrderStatus `json:"status"`
}

// CheckoutDeps зависимости координатора
type CheckoutDeps struct {
	Builder   *OrderAggregateBuilder
	Ledger    *StockLedger
	Policy    PaymentMethodPolicy
	Composer  InvoiceComposer
	Customers repository.CustomerRepository
	Orders    repository.OrderRepository
	Payments  repository.PaymentRepository
	Shipments repository.ShipmentRepository
	Invoices  repository.InvoiceRepository
	Carts     repository.CartRepository
	Tx        repository.TxManager
	Notifier  Notifier
	Logger    *slog.Logger
	Metrics   *metrics.Checkout

	VATPercent    float64
	TxTimeout     time.Duration
	NotifyTimeout time.Duration
}

// CheckoutService координатор оформления заказа: собирает черновик,
// затем одной атомарной транзакцией пишет заказ, отгрузку, платёж,
// счёт (для синхронной оплаты), позиции со списанием остатков и
// потребляет исходную корзину. Любая ошибка откатывает всё.
type CheckoutService struct {
	d CheckoutDeps
}

func NewCheckoutService(d CheckoutDeps) *CheckoutService {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.TxTimeout <= 0 {
		d.TxTimeout = 5 * time.Second
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = 3 * time.Second
	}
	return &CheckoutService{d: d}
}

// Checkout оформляет заказ по прямому запросу
func (s *CheckoutService) Checkout(ctx context.Context, in DirectOrderInput) (*CheckoutResult, error) {
	draft, err := s.d.Builder.BuildDirect(ctx, in)
	if err != nil {
		s.d.Metrics.Aborted(string(StageValidate))
		return nil, &CheckoutError{Stage: StageValidate, Err: err}
	}
	return s.commitDraft(ctx, draft)
}

// CheckoutCart оформляет заказ из сохранённой корзины
func (s *CheckoutService) CheckoutCart(ctx context.Context, in CartCheckoutInput) (*CheckoutResult, error) {
	draft, err := s.d.Builder.BuildFromCart(ctx, in)
	if err != nil {
		s.d.Metrics.Aborted(string(StageValidate))
		return nil, &CheckoutError{Stage: StageValidate, Err: err}
	}
	return s.commitDraft(ctx, draft)
}

func (s *CheckoutService) commitDraft(ctx context.Context, draft *OrderDraft) (*CheckoutResult, error) {
	start := time.Now()
	// транзакция всегда ограничена по времени
	ctx, cancel := context.WithTimeout(ctx, s.d.TxTimeout)
	defer cancel()

	var (
		res         *CheckoutResult
		synchronous bool
	)
	err := s.d.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		r, sync, err := s.persistAggregate(ctx, draft)
		if err != nil {
			return err
		}
		res, synchronous = r, sync
		return nil
	})
	if err != nil {
		var ce *CheckoutError
		if !errors.As(err, &ce) {
			ce = &CheckoutError{Stage: StageCommit, Err: err}
			err = ce
		}
		s.d.Metrics.Aborted(string(ce.Stage))
		s.d.Logger.Error("checkout aborted",
			"stage", string(ce.Stage), "customer_id", draft.Customer.ID, "error", ce.Err)
		return nil, err
	}

	s.d.Metrics.Committed(time.Since(start))
	s.d.Logger.Info("checkout committed",
		"order_id", res.OrderID, "order_uuid", res.UUID, "total", res.TotalPrice)

	if synchronous {
		s.dispatchNotification(NotificationEvent{
			OrderID:      res.OrderID,
			OrderUUID:    res.UUID,
			CustomerName: draft.Customer.Name,
			TotalAmount:  res.TotalPrice,
		})
	}
	return res, nil
}

// persistAggregate пишет агрегат целиком внутри уже открытой транзакции
func (s *CheckoutService) persistAggregate(ctx context.Context, draft *OrderDraft) (*CheckoutResult, bool, error) {
	now := time.Now().UTC()
	createdAt := draft.CreatedOn
	if createdAt.IsZero() {
		createdAt = now
	}

	order := &domain.Order{
		UUID:             uuid.NewString(),
		CustomerID:       draft.Customer.ID,
		CreatedAt:        createdAt,
		DeliveryLocation: draft.Location,
		DeliveryCharge:   draft.DeliveryCharge,
		DeliveryStatus:   domain.DeliveryStatusPending,
		Status:           domain.OrderStatusPaymentPending,
		TotalPrice:       draft.TotalPrice,
		Discount:         draft.TotalDiscount,
	}
	if err := s.d.Orders.Create(ctx, order); err != nil {
		return nil, false, &CheckoutError{Stage: StagePersistOrder, Err: err}
	}

	shipment := &domain.Shipment{
		OrderID: order.ID,
		Street:  draft.Address.Street,
		ZipCode: draft.Address.ZipCode,
		City:    draft.Address.City,
		State:   draft.Address.State,
		Country: draft.Address.Country,
		Status:  domain.DeliveryStatusPending,
	}
	if err := s.d.Shipments.Create(ctx, shipment); err != nil {
		return nil, false, &CheckoutError{Stage: StagePersistShipment, Err: err}
	}

	synchronous := s.d.Policy.Synchronous(draft.Method)
	payment := &domain.Payment{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Method:     draft.Method,
		Amount:     order.TotalPrice,
		Status:     domain.PaymentStatusPending,
		PayDate:    now,
	}
	if synchronous {
		payment.TransactionID = uuid.NewString()
	}
	if err := s.d.Payments.Create(ctx, payment); err != nil {
		return nil, false, &CheckoutError{Stage: StagePersistPayment, Err: err}
	}

	lineItems := make([]domain.OrderLineItem, len(draft.Lines))
	for i, ln := range draft.Lines {
		lineItems[i] = domain.OrderLineItem{
			OrderID:   order.ID,
			ProductID: ln.Product.ID,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
			Discount:  ln.Discount,
			Amount:    ln.Amount,
		}
	}

	if synchronous {
		if err := s.persistInvoice(ctx, order, payment, lineItems); err != nil {
			return nil, false, err
		}
		order.Status = domain.OrderStatusProcessed
		if err := s.d.Orders.Update(ctx, order); err != nil {
			return nil, false, &CheckoutError{Stage: StageMarkProcessed, Err: err}
		}
	}

	for i := range lineItems {
		if err := s.d.Ledger.ReserveLine(ctx, lineItems[i].ProductID, lineItems[i].Quantity); err != nil {
			return nil, false, &CheckoutError{Stage: StageReserveStock, Err: err}
		}
		if err := s.d.Orders.CreateLineItem(ctx, &lineItems[i]); err != nil {
			return nil, false, &CheckoutError{Stage: StagePersistLines, Err: err}
		}
	}

	if len(draft.CartIDs) > 0 {
		if err := s.d.Carts.DeleteByIDs(ctx, draft.CartIDs); err != nil {
			return nil, false, &CheckoutError{Stage: StageConsumeCart, Err: err}
		}
	}

	return &CheckoutResult{
		OrderID:       order.ID,
		UUID:          order.UUID,
		TotalPrice:    order.TotalPrice,
		TotalQuantity: draft.TotalQuantity,
		Status:        order.Status,
	}, synchronous, nil
}

func (s *CheckoutService) persistInvoice(ctx context.Context, order *domain.Order,
	payment *domain.Payment, lines []domain.OrderLineItem) error {

	inv, invLines := s.d.Composer.Compose(order, payment, lines, order.TotalPrice, s.d.VATPercent)
	if err := s.d.Invoices.Create(ctx, &inv); err != nil {
		return &CheckoutError{Stage: StagePersistInvoice, Err: err}
	}
	for i := range invLines {
		invLines[i].InvoiceID = inv.ID
		if err := s.d.Invoices.CreateLineItem(ctx, &invLines[i]); err != nil {
			return &CheckoutError{Stage: StagePersistInvoice, Err: err}
		}
	}
	return nil
}

// ConfirmPayment эффект внешнего подтверждения асинхронной оплаты:
// отдельной транзакцией проставляет transaction id, материализует
// отложенный счёт и переводит заказ в Processed.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, orderID int64, transactionID string) error {
	if orderID <= 0 || strings.TrimSpace(transactionID) == "" {
		return ErrInvalidInput
	}
	ctx, cancel := context.WithTimeout(ctx, s.d.TxTimeout)
	defer cancel()

	var ev NotificationEvent
	err := s.d.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.d.Payments.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		// синхронная оплата рассчитана при оформлении, подтверждать нечего
		if payment.Status == domain.PaymentStatusConfirmed || s.d.Policy.Synchronous(payment.Method) {
			return ErrInvalidState
		}
		// счёт выставляется не более одного раза на заказ
		if _, err := s.d.Invoices.GetByOrderID(ctx, orderID); err == nil {
			return ErrInvalidState
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		order, err := s.d.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		cust, err := s.d.Customers.GetByID(ctx, order.CustomerID)
		if err != nil {
			return err
		}

		payment.TransactionID = strings.TrimSpace(transactionID)
		payment.Status = domain.PaymentStatusConfirmed
		payment.PayDate = time.Now().UTC()
		if err := s.d.Payments.Update(ctx, payment); err != nil {
			return err
		}

		lines, err := s.d.Orders.ListLineItems(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.persistInvoice(ctx, order, payment, lines); err != nil {
			return err
		}

		order.Status = domain.OrderStatusProcessed
		if err := s.d.Orders.Update(ctx, order); err != nil {
			return err
		}

		ev = NotificationEvent{
			OrderID:      order.ID,
			OrderUUID:    order.UUID,
			CustomerName: cust.Name,
			TotalAmount:  order.TotalPrice,
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatchNotification(ev)
	return nil
}

// допустимые переходы статуса заказа
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusProcessed:        {domain.OrderStatusAwaitingDelivery, domain.OrderStatusCancelled},
	domain.OrderStatusAwaitingDelivery: {domain.OrderStatusFulfilled, domain.OrderStatusCancelled},
}

// AdvanceOrder продвигает статус заказа по жизненному циклу
func (s *CheckoutService) AdvanceOrder(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error) {
	if orderID <= 0 {
		return nil, ErrInvalidInput
	}
	var updated *domain.Order
	err := s.d.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.d.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		allowed := false
		for _, st := range orderTransitions[order.Status] {
			if st == next {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrInvalidState
		}

		order.Status = next
		switch next {
		case domain.OrderStatusAwaitingDelivery:
			order.DeliveryStatus = domain.DeliveryStatusInTransit
		case domain.OrderStatusFulfilled:
			now := time.Now().UTC()
			order.FulfilledAt = &now
			order.DeliveryStatus = domain.DeliveryStatusDelivered
		}
		if err := s.d.Orders.Update(ctx, order); err != nil {
			return err
		}

		// статус отгрузки зеркалит статус доставки заказа
		sh, err := s.d.Shipments.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		sh.Status = order.DeliveryStatus
		if err := s.d.Shipments.Update(ctx, sh); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetOrder возвращает заказ с позициями
func (s *CheckoutService) GetOrder(ctx context.Context, id int64) (*domain.Order, []domain.OrderLineItem, error) {
	if id <= 0 {
		return nil, nil, ErrInvalidInput
	}
	order, err := s.d.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.d.Orders.ListLineItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return order, lines, nil
}

// GetInvoice возвращает счёт заказа со строками
func (s *CheckoutService) GetInvoice(ctx context.Context, orderID int64) (*domain.Invoice, []domain.InvoiceLineItem, error) {
	if orderID <= 0 {
		return nil, nil, ErrInvalidInput
	}
	inv, err := s.d.Invoices.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.d.Invoices.ListLineItems(ctx, inv.ID)
	if err != nil {
		return nil, nil, err
	}
	return inv, lines, nil
}

// dispatchNotification отправляет событие после коммита, не дожидаясь результата.
// Ошибка отправки только логируется: заказ уже зафиксирован.
func (s *CheckoutService) dispatchNotification(ev NotificationEvent) {
	if s.d.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.d.NotifyTimeout)
		defer cancel()
		if err := s.d.Notifier.Send(ctx, ev); err != nil {
			s.d.Logger.Warn("order notification failed",
				"order_uuid", ev.OrderUUID, "error", err)
		}
	}()
}
