package service

import (
	"context"

	"lavka/internal/domain"
	"lavka/internal/repository"
)

// CustomerService регистрация и чтение покупателей
type CustomerService struct {
	repo repository.CustomerRepository
}

func NewCustomerService(repo repository.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

func (s *CustomerService) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	if c.Name == "" {
		return nil, ErrInvalidInput
	}
	// адрес профиля используется как адрес доставки при оформлении из корзины
	if c.Address != "" {
		if _, err := domain.ParseDeliveryLocation(c.Address); err != nil {
			return nil, err
		}
	}
	cp := c
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *CustomerService) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}
