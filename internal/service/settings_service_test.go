package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

func TestSettingsBootstrapKeepsStoredRow(t *testing.T) {
	stored := models.DefaultSettings()
	stored.Store.Name = "Adire House"
	store := &fakeSettings{stored: &stored}

	svc := NewSettingsService(store)
	assert.Equal(t, "Fabric Store", svc.Get().Store.Name)

	require.NoError(t, svc.Bootstrap(context.Background()))
	assert.Equal(t, "Adire House", svc.Get().Store.Name)
}

func TestSettingsShippingUpdate(t *testing.T) {
	store := &fakeSettings{}
	svc := NewSettingsService(store)
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx))

	_, err := svc.UpdateShipping(ctx, models.ShippingSettings{FlatRate: decimal.NewFromInt(-1)})
	assert.Equal(t, 400, utils.AsAppError(err).StatusCode)

	threshold := decimal.NewFromInt(50000)
	out, err := svc.UpdateShipping(ctx, models.ShippingSettings{
		FlatRate:              decimal.NewFromInt(2500),
		FreeShippingThreshold: decimal.NullDecimal{Decimal: threshold, Valid: true},
	})
	require.NoError(t, err)
	assert.True(t, out.Shipping.FlatRate.Equal(decimal.NewFromInt(2500)))

	cur := svc.Get()
	assert.True(t, cur.Shipping.CostFor(decimal.NewFromInt(10000)).Equal(decimal.NewFromInt(2500)))
	assert.True(t, cur.Shipping.CostFor(threshold).IsZero())

	persisted, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Shipping.FlatRate.Equal(decimal.NewFromInt(2500)))
}

func TestSettingsPaymentValidation(t *testing.T) {
	svc := NewSettingsService(&fakeSettings{})
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx))

	_, err := svc.UpdatePayment(ctx, models.PaymentSettings{})
	assert.Equal(t, 400, utils.AsAppError(err).StatusCode)

	_, err = svc.UpdatePayment(ctx, models.PaymentSettings{EnabledMethods: []models.PaymentMethod{"crypto"}})
	assert.Equal(t, 400, utils.AsAppError(err).StatusCode)

	_, err = svc.UpdatePayment(ctx, models.PaymentSettings{EnabledMethods: []models.PaymentMethod{models.PaymentBankTransfer}})
	assert.Equal(t, 400, utils.AsAppError(err).StatusCode, "bank transfer needs an account number")

	out, err := svc.UpdatePayment(ctx, models.PaymentSettings{
		EnabledMethods: []models.PaymentMethod{models.PaymentPaystack, models.PaymentBankTransfer, models.PaymentPaystack},
		BankTransfer:   models.BankDetails{BankName: "GTBank", AccountName: "Fabric Store", AccountNumber: "0123456789"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.PaymentMethod{models.PaymentPaystack, models.PaymentBankTransfer}, out.Payment.EnabledMethods)

	pub := svc.Public()
	require.NotNil(t, pub.BankTransfer)
	assert.Equal(t, "0123456789", pub.BankTransfer.AccountNumber)
}

func TestSettingsStoreCurrency(t *testing.T) {
	svc := NewSettingsService(&fakeSettings{})
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx))

	_, err := svc.UpdateStore(ctx, models.StoreSettings{Name: "Shop", Currency: "USD"})
	assert.Equal(t, 400, utils.AsAppError(err).StatusCode)

	out, err := svc.UpdateStore(ctx, models.StoreSettings{Name: "Shop"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCurrency, out.Store.Currency)
	assert.Equal(t, "Shop", svc.Public().StoreName)
}

func TestSettingsGetReturnsCopy(t *testing.T) {
	svc := NewSettingsService(&fakeSettings{})
	got := svc.Get()
	got.Payment.EnabledMethods[0] = models.PaymentCashOnDelivery
	assert.Equal(t, models.PaymentPaystack, svc.Get().Payment.EnabledMethods[0])
}
