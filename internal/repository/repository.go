package repository

import (
	"context"
	"errors"
	"strings"

	"lavka/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ErrStockConflict условный декремент не прошёл: остатка меньше, чем запрошено
var ErrStockConflict = errors.New("stock conflict")

// ErrDuplicate нарушение уникальности (например, повтор SKU)
var ErrDuplicate = errors.New("duplicate")

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	MinPrice      *float64
	MaxPrice      *float64
}

// ProductRepository интерфейс репозитория товаров.
// DecrementStock — единственный разрешённый способ менять остаток при оформлении:
// одна условная запись "stock = stock - n where stock >= n", ноль затронутых
// строк означает ErrStockConflict. Никаких read-then-write в два приёма.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	DecrementStock(ctx context.Context, id int64, qty int64) error
}

// CustomerRepository интерфейс репозитория покупателей
type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
}

// OrderRepository интерфейс репозитория заказов и их позиций
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	CreateLineItem(ctx context.Context, li *domain.OrderLineItem) error
	ListLineItems(ctx context.Context, orderID int64) ([]domain.OrderLineItem, error)
}

// PaymentRepository интерфейс репозитория платежей
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
}

// ShipmentRepository интерфейс репозитория отгрузок
type ShipmentRepository interface {
	Create(ctx context.Context, s *domain.Shipment) error
	GetByOrderID(ctx context.Context, orderID int64) (*domain.Shipment, error)
	Update(ctx context.Context, s *domain.Shipment) error
}

// InvoiceRepository интерфейс репозитория счетов
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByOrderID(ctx context.Context, orderID int64) (*domain.Invoice, error)
	CreateLineItem(ctx context.Context, li *domain.InvoiceLineItem) error
	ListLineItems(ctx context.Context, invoiceID int64) ([]domain.InvoiceLineItem, error)
}

// CartRepository интерфейс репозитория корзины
type CartRepository interface {
	Add(ctx context.Context, it *domain.CartItem) error
	GetByIDs(ctx context.Context, customerID int64, ids []int64) ([]domain.CartItem, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.CartItem, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// TxManager абстракция транзакции: fn выполняется атомарно,
// ошибка из fn откатывает все записи внутри без остатка.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
