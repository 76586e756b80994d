package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/TenHe10/CruchCount/internal/models"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Get(ctx context.Context, barcode string) (*models.Product, error) {
	args := m.Called(ctx, barcode)
	if res := args.Get(0); res != nil {
		return res.(*models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}
