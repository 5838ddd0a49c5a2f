package app

import (
	"context"

	"github.com/cimillas/flash-sale/internal/domain"
)

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type AvailabilityReader interface {
	GetAvailableStock(ctx context.Context, productID string) (int, error)
}

type ProductView struct {
	domain.Product
	AvailableStock int
}

type ProductService struct {
	repo   ProductRepository
	ledger AvailabilityReader
}

func NewProductService(repo ProductRepository, ledger AvailabilityReader) *ProductService {
	return &ProductService{
		repo:   repo,
		ledger: ledger,
	}
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (ProductView, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return ProductView{}, err
	}
	available, err := s.ledger.GetAvailableStock(ctx, p.ID)
	if err != nil {
		return ProductView{}, err
	}
	return ProductView{Product: p, AvailableStock: available}, nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]ProductView, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		available, err := s.ledger.GetAvailableStock(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, ProductView{Product: p, AvailableStock: available})
	}
	return views, nil
}
