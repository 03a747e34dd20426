package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// SettingsService keeps the store settings in memory. The row is written
// with defaults once at startup, after which every reader uses the cached copy.
type SettingsService struct {
	store SettingsStore

	writeMu sync.Mutex
	mu      sync.RWMutex
	current models.Settings
}

// NewSettingsService starts with defaults until Bootstrap loads the stored row.
func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store, current: models.DefaultSettings()}
}

// Bootstrap inserts the default row if absent and loads the stored settings.
func (s *SettingsService) Bootstrap(ctx context.Context) error {
	st, err := s.store.Bootstrap(ctx, models.DefaultSettings())
	if err != nil {
		return fmt.Errorf("bootstrap settings: %w", err)
	}
	s.set(*st)
	log.Info().Str("store", st.Store.Name).Msg("Settings loaded")
	return nil
}

// Get returns a copy of the current settings.
func (s *SettingsService) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.current
	cp.Payment.EnabledMethods = append([]models.PaymentMethod(nil), s.current.Payment.EnabledMethods...)
	return cp
}

func (s *SettingsService) Public() models.PublicSettings {
	return s.Get().Public()
}

func (s *SettingsService) set(st models.Settings) {
	s.mu.Lock()
	s.current = st
	s.mu.Unlock()
}

// UpdateStore replaces the store section.
func (s *SettingsService) UpdateStore(ctx context.Context, in models.StoreSettings) (*models.Settings, error) {
	if in.Currency == "" {
		in.Currency = models.DefaultCurrency
	}
	if in.Currency != models.DefaultCurrency {
		return nil, utils.BadRequest("Only NGN is supported")
	}
	return s.update(ctx, func(st *models.Settings) { st.Store = in })
}

// UpdateShipping replaces the shipping section.
func (s *SettingsService) UpdateShipping(ctx context.Context, in models.ShippingSettings) (*models.Settings, error) {
	if in.FlatRate.IsNegative() {
		return nil, utils.Validation([]utils.FieldError{{Field: "flatRate", Message: "must be greater than or equal to 0"}})
	}
	if in.FreeShippingThreshold.Valid && in.FreeShippingThreshold.Decimal.IsNegative() {
		return nil, utils.Validation([]utils.FieldError{{Field: "freeShippingThreshold", Message: "must be greater than or equal to 0"}})
	}
	return s.update(ctx, func(st *models.Settings) { st.Shipping = in })
}

// UpdatePayment replaces the payment section.
func (s *SettingsService) UpdatePayment(ctx context.Context, in models.PaymentSettings) (*models.Settings, error) {
	if len(in.EnabledMethods) == 0 {
		return nil, utils.Validation([]utils.FieldError{{Field: "enabledMethods", Message: "must not be empty"}})
	}
	seen := make(map[models.PaymentMethod]bool)
	methods := make([]models.PaymentMethod, 0, len(in.EnabledMethods))
	for _, m := range in.EnabledMethods {
		switch m {
		case models.PaymentPaystack, models.PaymentBankTransfer, models.PaymentCashOnDelivery:
		default:
			return nil, utils.Validation([]utils.FieldError{{Field: "enabledMethods", Message: "contains an unknown method: " + string(m)}})
		}
		if !seen[m] {
			seen[m] = true
			methods = append(methods, m)
		}
	}
	in.EnabledMethods = methods
	if seen[models.PaymentBankTransfer] && in.BankTransfer.AccountNumber == "" {
		return nil, utils.Validation([]utils.FieldError{{Field: "bankTransfer.accountNumber", Message: "is required when bank transfer is enabled"}})
	}
	return s.update(ctx, func(st *models.Settings) { st.Payment = in })
}

func (s *SettingsService) update(ctx context.Context, apply func(*models.Settings)) (*models.Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	st := s.Get()
	apply(&st)
	if err := s.store.Save(ctx, &st); err != nil {
		return nil, err
	}
	s.set(st)
	return &st, nil
}
