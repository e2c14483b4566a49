package service

import (
	"context"
	"errors"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

// CartService минимальная поверхность корзины: ровно столько,
// сколько нужно пути оформления из корзины
type CartService struct {
	carts     repository.CartRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository,
	customers repository.CustomerRepository) *CartService {
	return &CartService{carts: carts, products: products, customers: customers}
}

func (s *CartService) Add(ctx context.Context, customerID, productID, quantity int64) (*domain.CartItem, error) {
	if customerID <= 0 || productID <= 0 || quantity <= 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	it := domain.CartItem{CustomerID: customerID, ProductID: productID, Quantity: quantity}
	if err := s.carts.Add(ctx, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *CartService) List(ctx context.Context, customerID int64) ([]domain.CartItem, error) {
	if customerID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.carts.ListByCustomer(ctx, customerID)
}

func (s *CartService) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return ErrInvalidInput
	}
	return s.carts.DeleteByIDs(ctx, ids)
}
