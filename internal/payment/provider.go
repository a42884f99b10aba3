package payment

import (
	"context"
	"fmt"

	"github.com/linemk/storefront/internal/domain/models"
)

const ProviderMock = "mock"

// ChargeResult ответ платёжного провайдера
type ChargeResult struct {
	PaymentID string
	Status    models.PaymentStatus
}

// Provider списывает деньги за заказ. Реализации взаимозаменяемы
// и выбираются конфигурацией.
type Provider interface {
	Charge(ctx context.Context, order *models.Order) (ChargeResult, error)
}

// MockProvider всегда сообщает об успешной оплате
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Charge(_ context.Context, order *models.Order) (ChargeResult, error) {
	return ChargeResult{
		PaymentID: models.MockPaymentID(order.ID),
		Status:    models.PaymentStatusSuccess,
	}, nil
}

// NewProvider возвращает провайдера по имени из конфига
func NewProvider(name string) (Provider, error) {
	switch name {
	case ProviderMock, "":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", name)
	}
}
