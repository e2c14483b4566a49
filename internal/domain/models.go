package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Customer покупатель; Address хранится одной строкой в формате доставки
type Customer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Product товар каталога; Stock меняется только условным декрементом при оформлении заказа
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
}

// OrderStatus статус заказа
type OrderStatus string

const (
	OrderStatusPaymentPending   OrderStatus = "PaymentPending"
	OrderStatusProcessed        OrderStatus = "Processed"
	OrderStatusAwaitingDelivery OrderStatus = "AwaitingDelivery"
	OrderStatusFulfilled        OrderStatus = "Fulfilled"
	OrderStatusCancelled        OrderStatus = "Cancelled"
)

// ParseOrderStatus единственный канонический разбор статуса заказа
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPaymentPending, OrderStatusProcessed, OrderStatusAwaitingDelivery,
		OrderStatusFulfilled, OrderStatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// DeliveryStatus статус доставки, зеркалится в Shipment
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "Pending"
	DeliveryStatusInTransit DeliveryStatus = "InTransit"
	DeliveryStatusDelivered DeliveryStatus = "Delivered"
)

// PaymentMethod способ оплаты
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodYoomoney     PaymentMethod = "yoomoney"
	MethodQiwi         PaymentMethod = "qiwi"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCoupon       PaymentMethod = "coupon"
	MethodCard         PaymentMethod = "card"
)

// ParsePaymentMethod единственный канонический разбор способа оплаты
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case MethodCash:
		return MethodCash, nil
	case MethodYoomoney:
		return MethodYoomoney, nil
	case MethodQiwi:
		return MethodQiwi, nil
	case MethodBankTransfer:
		return MethodBankTransfer, nil
	case MethodCoupon:
		return MethodCoupon, nil
	case MethodCard:
		return MethodCard, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusConfirmed PaymentStatus = "Confirmed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// Order заголовок заказа
type Order struct {
	ID               int64          `json:"id"`
	UUID             string         `json:"uuid"`
	CustomerID       int64          `json:"customer_id"`
	CreatedAt        time.Time      `json:"created_at"`
	FulfilledAt      *time.Time     `json:"fulfilled_at,omitempty"`
	DeliveryLocation string         `json:"delivery_location"`
	DeliveryCharge   float64        `json:"delivery_charge"`
	DeliveryStatus   DeliveryStatus `json:"delivery_status"`
	Status           OrderStatus    `json:"status"`
	TotalPrice       float64        `json:"total_price"`
	Discount         float64        `json:"discount"`
}

// OrderLineItem позиция заказа, неизменяемая после создания
type OrderLineItem struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount"`
	Amount    float64 `json:"amount"`
}

// Payment платёж; TransactionID пуст, пока не подтверждён внешним шлюзом
type Payment struct {
	ID            int64         `json:"id"`
	OrderID       int64         `json:"order_id"`
	CustomerID    int64         `json:"customer_id"`
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Amount        float64       `json:"amount"`
	Status        PaymentStatus `json:"status"`
	PayDate       time.Time     `json:"pay_date"`
}

// Shipment отгрузка, создаётся не более одного раза на заказ
type Shipment struct {
	ID       int64          `json:"id"`
	OrderID  int64          `json:"order_id"`
	Street   string         `json:"street"`
	ZipCode  string         `json:"zip_code"`
	City     string         `json:"city"`
	State    string         `json:"state"`
	Country  string         `json:"country"`
	Status   DeliveryStatus `json:"status"`
	Assignee string         `json:"assignee,omitempty"`
}

// Invoice счёт по заказу
type Invoice struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	CustomerID int64     `json:"customer_id"`
	PaymentID  int64     `json:"payment_id"`
	SubTotal   float64   `json:"sub_total"`
	VATPercent float64   `json:"vat_percent"`
	VATAmount  float64   `json:"vat_amount"`
	NetAmount  float64   `json:"net_amount"`
	IssuedAt   time.Time `json:"issued_at"`
}

// InvoiceLineItem строка счёта
type InvoiceLineItem struct {
	ID              int64   `json:"id"`
	InvoiceID       int64   `json:"invoice_id"`
	ProductID       int64   `json:"product_id"`
	Quantity        int64   `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountAmount  float64 `json:"discount_amount"`
	Total           float64 `json:"total"`
}

// CartItem отложенная позиция корзины покупателя
type CartItem struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int64     `json:"quantity"`
	AddedAt    time.Time `json:"added_at"`
}

// Address разобранный адрес доставки
type Address struct {
	Street  string `json:"street"`
	ZipCode string `json:"zip_code"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// ErrInvalidLocation строка доставки не соответствует формату из пяти полей
var ErrInvalidLocation = errors.New("invalid delivery location format")

// ParseDeliveryLocation разбирает строку "street, zip, city, state, country".
// Ровно пять полей, каждое непустое, иначе ошибка без частичной отгрузки.
func ParseDeliveryLocation(s string) (Address, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return Address{}, ErrInvalidLocation
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Address{}, ErrInvalidLocation
		}
	}
	return Address{
		Street:  parts[0],
		ZipCode: parts[1],
		City:    parts[2],
		State:   parts[3],
		Country: parts[4],
	}, nil
}
