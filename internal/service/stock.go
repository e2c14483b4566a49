package service

import (
	"context"
	"errors"
	"fmt"

	"lavka/internal/repository"
)

// ErrInsufficientStock остатка товара не хватает на запрошенное количество
var ErrInsufficientStock = errors.New("insufficient stock")

// StockError называет товар, на котором сорвалось списание
type StockError struct {
	ProductID int64
	Requested int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %d)", e.ProductID, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// StockLedger проверяет и списывает остатки при оформлении заказа.
// Списание — одна условная запись внутри транзакции координатора;
// любая нехватка прерывает операцию целиком, частичных резервов нет.
type StockLedger struct {
	products repository.ProductRepository
}

func NewStockLedger(products repository.ProductRepository) *StockLedger {
	return &StockLedger{products: products}
}

func (l *StockLedger) ReserveLine(ctx context.Context, productID, qty int64) error {
	err := l.products.DecrementStock(ctx, productID, qty)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStockConflict):
		return &StockError{ProductID: productID, Requested: qty}
	case errors.Is(err, repository.ErrNotFound):
		return ErrProductNotFound
	}
	return err
}

// Reserve списывает остаток по каждой позиции черновика по порядку
func (l *StockLedger) Reserve(ctx context.Context, lines []DraftLine) error {
	for _, ln := range lines {
		if err := l.ReserveLine(ctx, ln.Product.ID, ln.Quantity); err != nil {
			return err
		}
	}
	return nil
}
