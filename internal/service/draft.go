package service

import (
	"context"
	"errors"
	"math"
	"time"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

var (
	ErrEmptyOrder       = errors.New("empty order")
	ErrPriceMismatch    = errors.New("price mismatch")
	ErrProductNotFound  = errors.New("product not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

// допуск сравнения денежных сумм
const priceEpsilon = 1e-6

// DirectItem позиция прямого запроса оформления; Price за единицу, Discount суммой
type DirectItem struct {
	ProductID int64   `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Discount  float64 `json:"discount"`
}

// DirectOrderInput прямой запрос оформления с заявленным клиентом итогом
type DirectOrderInput struct {
	CustomerID       int64
	CreatedOn        time.Time
	DeliveryLocation string
	DeliveryCharge   float64
	TotalPrice       float64
	Method           domain.PaymentMethod
	Items            []DirectItem
}

// CartCheckoutInput оформление из сохранённой корзины; итог клиента игнорируется
type CartCheckoutInput struct {
	CustomerID int64
	Method     domain.PaymentMethod
	CartIDs    []int64
}

// DraftLine разрешённая позиция черновика
type DraftLine struct {
	Product   *domain.Product
	Quantity  int64
	UnitPrice float64
	Discount  float64
	Amount    float64
}

// OrderDraft результат чистой валидации: разрешённые товары и авторитетные итоги.
// Записей в хранилище построитель не делает.
type OrderDraft struct {
	Customer       *domain.Customer
	Address        domain.Address
	Location       string
	DeliveryCharge float64
	CreatedOn      time.Time
	Method         domain.PaymentMethod
	Lines          []DraftLine
	TotalPrice     float64
	TotalQuantity  int64
	TotalDiscount  float64
	CartIDs        []int64 // непустой только для оформления из корзины
}

// OrderAggregateBuilder собирает и валидирует черновик заказа
type OrderAggregateBuilder struct {
	products           repository.ProductRepository
	customers          repository.CustomerRepository
	carts              repository.CartRepository
	cartDeliveryCharge float64
}

func NewOrderAggregateBuilder(products repository.ProductRepository, customers repository.CustomerRepository,
	carts repository.CartRepository, cartDeliveryCharge float64) *OrderAggregateBuilder {
	return &OrderAggregateBuilder{
		products:           products,
		customers:          customers,
		carts:              carts,
		cartDeliveryCharge: cartDeliveryCharge,
	}
}

func (b *OrderAggregateBuilder) resolveCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := b.customers.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCustomerNotFound
	}
	return c, err
}

func (b *OrderAggregateBuilder) resolveProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := b.products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// BuildDirect пересчитывает итог по позициям и сверяет с заявленным клиентом:
// расхождение — ErrPriceMismatch, защита от подмены суммы на клиенте.
func (b *OrderAggregateBuilder) BuildDirect(ctx context.Context, in DirectOrderInput) (*OrderDraft, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	cust, err := b.resolveCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	addr, err := domain.ParseDeliveryLocation(in.DeliveryLocation)
	if err != nil {
		return nil, err
	}

	draft := &OrderDraft{
		Customer:       cust,
		Address:        addr,
		Location:       in.DeliveryLocation,
		DeliveryCharge: in.DeliveryCharge,
		CreatedOn:      in.CreatedOn,
		Method:         in.Method,
		Lines:          make([]DraftLine, 0, len(in.Items)),
	}

	sum := 0.0
	for _, it := range in.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 || it.Price < 0 || it.Discount < 0 {
			return nil, ErrInvalidInput
		}
		p, err := b.resolveProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		amount := it.Price*float64(it.Quantity) - it.Discount
		draft.Lines = append(draft.Lines, DraftLine{
			Product:   p,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Discount:  it.Discount,
			Amount:    amount,
		})
		sum += amount
		draft.TotalQuantity += it.Quantity
		draft.TotalDiscount += it.Discount
	}

	if math.Abs(sum+in.DeliveryCharge-in.TotalPrice) > priceEpsilon {
		return nil, ErrPriceMismatch
	}
	draft.TotalPrice = sum + in.DeliveryCharge
	return draft, nil
}

// BuildFromCart строит черновик из сохранённых строк корзины.
// Корзина — доверенный источник: цены берутся живыми из каталога,
// заявленные клиентом суммы не учитываются. Адрес — из профиля покупателя.
func (b *OrderAggregateBuilder) BuildFromCart(ctx context.Context, in CartCheckoutInput) (*OrderDraft, error) {
	if len(in.CartIDs) == 0 {
		return nil, ErrEmptyOrder
	}
	// повтор id в запросе удвоил бы позицию и списание остатка
	seen := make(map[int64]struct{}, len(in.CartIDs))
	for _, id := range in.CartIDs {
		if _, ok := seen[id]; ok {
			return nil, ErrInvalidInput
		}
		seen[id] = struct{}{}
	}
	cust, err := b.resolveCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	addr, err := domain.ParseDeliveryLocation(cust.Address)
	if err != nil {
		return nil, err
	}
	items, err := b.carts.GetByIDs(ctx, in.CustomerID, in.CartIDs)
	if err != nil {
		return nil, err
	}

	draft := &OrderDraft{
		Customer:       cust,
		Address:        addr,
		Location:       cust.Address,
		DeliveryCharge: b.cartDeliveryCharge,
		Method:         in.Method,
		Lines:          make([]DraftLine, 0, len(items)),
		CartIDs:        in.CartIDs,
	}

	sum := 0.0
	for _, it := range items {
		p, err := b.resolveProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		amount := p.Price * float64(it.Quantity)
		draft.Lines = append(draft.Lines, DraftLine{
			Product:   p,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			Amount:    amount,
		})
		sum += amount
		draft.TotalQuantity += it.Quantity
	}
	draft.TotalPrice = sum + b.cartDeliveryCharge
	return draft, nil
}
