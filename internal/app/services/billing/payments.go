package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	domain "github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInactiveMethod is returned when a disabled payment method is selected.
var ErrInactiveMethod = errors.New("payment method is not active")

// DefaultPaymentMethods are seeded into an empty installation.
func DefaultPaymentMethods() []domain.PaymentMethod {
	return []domain.PaymentMethod{
		{
			Code:         "multicaixa-express",
			Name:         "Multicaixa Express",
			Description:  "Pagamento imediato pela aplicação Multicaixa Express.",
			Instructions: "Confirme o pagamento no telemóvel associado à sua conta.",
			Active:       true,
			SortOrder:    1,
			StatusPath:   "$.status",
			PaidValue:    "paid",
		},
		{
			Code:         "referencia",
			Name:         "Pagamento por Referência",
			Description:  "Pague em qualquer ATM ou banco online com a entidade e referência indicadas.",
			Instructions: "A fatura é liquidada automaticamente após a confirmação do banco.",
			Active:       true,
			SortOrder:    2,
		},
		{
			Code:         "transferencia",
			Name:         "Transferência Bancária",
			Description:  "Transferência para a conta AngoHost.",
			Instructions: "Indique o número da fatura no descritivo e envie o comprovativo.",
			Active:       true,
			SortOrder:    3,
		},
	}
}

// ListPaymentMethods lists the active methods with webhook settings stripped.
func (s *Service) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	methods, err := s.store.ListPaymentMethods(ctx, true)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		methods[i] = methods[i].Public()
	}
	return methods, nil
}

// ListAllPaymentMethods lists every method with full configuration.
func (s *Service) ListAllPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return s.store.ListPaymentMethods(ctx, false)
}

// ActivePaymentMethod returns the method id when it can be used at checkout.
func (s *Service) ActivePaymentMethod(ctx context.Context, id string) (domain.PaymentMethod, error) {
	m, err := s.store.GetPaymentMethod(ctx, id)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	if !m.Active {
		return domain.PaymentMethod{}, fmt.Errorf("%s: %w", m.Code, ErrInactiveMethod)
	}
	return m, nil
}

// CreatePaymentMethod validates and stores a method.
func (s *Service) CreatePaymentMethod(ctx context.Context, m domain.PaymentMethod) (domain.PaymentMethod, error) {
	m.ID = ""
	m.Code = domain.NormalizeCode(m.Code)
	if err := validate.Struct(m); err != nil {
		return domain.PaymentMethod{}, err
	}
	created, err := s.store.CreatePaymentMethod(ctx, m)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	s.log.WithField("code", created.Code).Info("payment method created")
	return created, nil
}

// UpdatePaymentMethod replaces a method's settings.
func (s *Service) UpdatePaymentMethod(ctx context.Context, m domain.PaymentMethod) (domain.PaymentMethod, error) {
	if _, err := s.store.GetPaymentMethod(ctx, m.ID); err != nil {
		return domain.PaymentMethod{}, err
	}
	m.Code = domain.NormalizeCode(m.Code)
	if err := validate.Struct(m); err != nil {
		return domain.PaymentMethod{}, err
	}
	return s.store.UpdatePaymentMethod(ctx, m)
}

// TogglePaymentMethod flips a method between active and inactive.
func (s *Service) TogglePaymentMethod(ctx context.Context, id string) (domain.PaymentMethod, error) {
	m, err := s.store.GetPaymentMethod(ctx, id)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	m.Active = !m.Active
	return s.store.UpdatePaymentMethod(ctx, m)
}

// DeletePaymentMethod removes a method that no order references.
func (s *Service) DeletePaymentMethod(ctx context.Context, id string) error {
	return s.store.DeletePaymentMethod(ctx, id)
}

// SeedPaymentMethods creates the default methods whose codes do not exist
// yet and returns how many were added.
func (s *Service) SeedPaymentMethods(ctx context.Context) (int, error) {
	added := 0
	for _, m := range DefaultPaymentMethods() {
		_, err := s.store.GetPaymentMethodByCode(ctx, m.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return added, err
		}
		if _, err := s.store.CreatePaymentMethod(ctx, m); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
