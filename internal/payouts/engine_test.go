package payouts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/ledger"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/transfer"
)

type fakeTransfers struct {
	mu          sync.Mutex
	recipients  []transfer.RecipientRequest
	transfers   []transfer.TransferRequest
	transferErr []error
}

func (f *fakeTransfers) CreateRecipient(_ context.Context, req transfer.RecipientRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recipients = append(f.recipients, req)
	return "RCP_" + req.AccountNumber, nil
}

func (f *fakeTransfers) InitiateTransfer(_ context.Context, req transfer.TransferRequest) (transfer.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, req)
	if len(f.transferErr) > 0 {
		err := f.transferErr[0]
		f.transferErr = f.transferErr[1:]
		if err != nil {
			return transfer.TransferResult{}, err
		}
	}
	return transfer.TransferResult{Reference: req.Reference, TransferCode: "TRF_1", Status: "pending"}, nil
}

type recordingAlerts struct {
	subjects []string
}

func (r *recordingAlerts) Notify(_ context.Context, subject, _ string) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

type engineFixture struct {
	db        *gorm.DB
	engine    *Engine
	transfers *fakeTransfers
	alerts    *recordingAlerts
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := dbtest.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	transfers := &fakeTransfers{}
	alerts := &recordingAlerts{}
	engine, err := NewEngine(EngineDeps{
		Tx:       dbtest.TxRunner{DB: db},
		Repo:     NewRepository(db),
		Transfer: transfers,
		Banks:    newResolver(&stubCatalog{banks: ghanaBanks()}),
		Ledger:   ledgerSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(db), logger.Nop()),
		Alerts:   alerts,
		Config: config.PayoutsConfig{
			Commission:          decimal.RequireFromString("0.20"),
			MinMatchScore:       0.75,
			AlertOnFailure:      true,
			TransferMaxAttempts: 3,
			TransferRetryBase:   time.Millisecond,
		},
		Currency: "GHS",
	})
	require.NoError(t, err)
	return &engineFixture{db: db, engine: engine, transfers: transfers, alerts: alerts}
}

func (f *engineFixture) bankVendor(t *testing.T, bankName string) *models.Vendor {
	t.Helper()
	vendor := dbtest.Vendor(t, f.db, "GH", 5.60, -0.20)
	account := gofakeit.Numerify("##########")
	dbtest.MustCreate(t, f.db, &models.VendorPayoutMethod{
		VendorID:      vendor.ID,
		Method:        enums.PayoutMethodBank,
		Status:        enums.PayoutMethodStatusVerified,
		AccountName:   vendor.Name,
		BankName:      &bankName,
		AccountNumber: &account,
	})
	return vendor
}

func (f *engineFixture) momoVendor(t *testing.T, provider string) *models.Vendor {
	t.Helper()
	vendor := dbtest.Vendor(t, f.db, "GH", 5.60, -0.20)
	number := "0241234567"
	dbtest.MustCreate(t, f.db, &models.VendorPayoutMethod{
		VendorID:     vendor.ID,
		Method:       enums.PayoutMethodMomo,
		Status:       enums.PayoutMethodStatusVerified,
		MomoNumber:   &number,
		MomoProvider: &provider,
	})
	return vendor
}

type share struct {
	vendorID uuid.UUID
	amount   string
	fee      string
	failed   bool
}

func (f *engineFixture) order(t *testing.T, status enums.OrderStatus, shares ...share) *models.Order {
	t.Helper()
	order := &models.Order{
		OwnerID:     uuid.New(),
		AddressID:   uuid.New(),
		PaymentID:   uuid.New(),
		OrderNumber: "ORD-20260310-" + gofakeit.LetterN(6),
		Status:      status,
	}
	dbtest.MustCreate(t, f.db, order)

	seen := map[uuid.UUID]bool{}
	for _, s := range shares {
		lineStatus := enums.LineStatusFor(status)
		if s.failed {
			lineStatus = enums.LineStatusFailed
		}
		amount := decimal.RequireFromString(s.amount)
		vendorID := s.vendorID
		dbtest.MustCreate(t, f.db, &models.OrderLine{
			OrderID:   order.ID,
			ProductID: uuid.New(),
			VendorID:  &vendorID,
			Quantity:  1,
			UnitPrice: amount,
			Amount:    amount,
			Status:    lineStatus,
		})
		if !seen[s.vendorID] {
			seen[s.vendorID] = true
			dbtest.MustCreate(t, f.db, &models.OrderVendor{OrderID: order.ID, VendorID: s.vendorID, DeliveryFee: decimal.RequireFromString(s.fee)})
		}
	}
	return order
}

func (f *engineFixture) payouts(t *testing.T, vendorID uuid.UUID) []models.Payout {
	t.Helper()
	var rows []models.Payout
	require.NoError(t, f.db.Preload("Orders").Where("vendor_id = ?", vendorID).Find(&rows).Error)
	return rows
}

func (f *engineFixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestRunBatchPaysBankVendor(t *testing.T) {
	f := newEngineFixture(t)
	vendor := f.bankVendor(t, "GCB")
	first := f.order(t, enums.OrderStatusDelivered, share{vendorID: vendor.ID, amount: "100", fee: "20"})
	second := f.order(t, enums.OrderStatusDelivered,
		share{vendorID: vendor.ID, amount: "50", fee: "10"},
		share{vendorID: vendor.ID, amount: "999", fee: "10", failed: true},
	)
	f.order(t, enums.OrderStatusShipped, share{vendorID: vendor.ID, amount: "70", fee: "5"})

	report, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Vendors)
	assert.Equal(t, 1, report.Succeeded)
	assert.True(t, report.Paid.Equal(decimal.RequireFromString("144")), "paid %s", report.Paid)

	require.Len(t, f.transfers.recipients, 1)
	assert.Equal(t, transfer.RecipientTypeBank, f.transfers.recipients[0].Type)
	assert.Equal(t, "040100", f.transfers.recipients[0].BankCode)
	assert.Equal(t, "GHS", f.transfers.recipients[0].Currency)
	require.Len(t, f.transfers.transfers, 1)
	sent := f.transfers.transfers[0]
	assert.EqualValues(t, 14400, sent.AmountMinor)
	assert.Contains(t, sent.Reason, first.OrderNumber)
	assert.Contains(t, sent.Reason, second.OrderNumber)

	rows := f.payouts(t, vendor.ID)
	require.Len(t, rows, 1)
	payout := rows[0]
	assert.Equal(t, enums.PayoutStatusSuccess, payout.Status)
	assert.Equal(t, payout.ID.String(), sent.Reference)
	assert.True(t, payout.ProductTotal.Equal(decimal.RequireFromString("150")))
	assert.True(t, payout.DeliveryTotal.Equal(decimal.RequireFromString("30")))
	require.NotNil(t, payout.TransactionID)
	assert.Equal(t, sent.Reference, *payout.TransactionID)
	require.NotNil(t, payout.MatchScore)
	assert.InDelta(t, 1.0, *payout.MatchScore, 0.001)
	assert.Len(t, payout.Orders, 2)

	assert.EqualValues(t, 1, f.count(t, &models.LedgerEvent{}, "payout_id = ? AND type = ? AND amount_minor = ?", payout.ID, enums.LedgerEventTypeVendorPayout, 14400))
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ? AND aggregate_id = ?", enums.EventPayoutResult, payout.ID))
	assert.Empty(t, f.alerts.subjects)

	again, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, again.Skipped)
	assert.Len(t, f.transfers.transfers, 1)
	assert.Len(t, f.payouts(t, vendor.ID), 1)
}

func TestRunBatchPaysEachVendorOfSharedOrder(t *testing.T) {
	f := newEngineFixture(t)
	bank := f.bankVendor(t, "Fidelty Bank")
	momo := f.momoVendor(t, "mtn")
	f.order(t, enums.OrderStatusDelivered,
		share{vendorID: bank.ID, amount: "40", fee: "10"},
		share{vendorID: momo.ID, amount: "60", fee: "15"},
	)

	report, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.True(t, report.Paid.Equal(decimal.RequireFromString("100")), "paid %s", report.Paid)

	bankPayouts := f.payouts(t, bank.ID)
	require.Len(t, bankPayouts, 1)
	assert.True(t, bankPayouts[0].Amount.Equal(decimal.RequireFromString("40")))
	require.NotNil(t, bankPayouts[0].MatchScore)
	assert.InDelta(t, 0.875, *bankPayouts[0].MatchScore, 0.001)

	momoPayouts := f.payouts(t, momo.ID)
	require.Len(t, momoPayouts, 1)
	assert.True(t, momoPayouts[0].Amount.Equal(decimal.RequireFromString("60")))
	assert.Nil(t, momoPayouts[0].MatchScore)

	var momoRecipient transfer.RecipientRequest
	for _, r := range f.transfers.recipients {
		if r.Type == transfer.RecipientTypeMomo {
			momoRecipient = r
		}
	}
	assert.Equal(t, "mtn", momoRecipient.BankCode)
	assert.Equal(t, momo.Name, momoRecipient.Name)
}

func TestRunBatchRecordsUnresolvableDestination(t *testing.T) {
	f := newEngineFixture(t)
	vendor := f.momoVendor(t, "GLO")
	order := f.order(t, enums.OrderStatusDelivered, share{vendorID: vendor.ID, amount: "25", fee: "5"})

	report, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Error, "GLO")
	assert.Empty(t, f.transfers.transfers)

	rows := f.payouts(t, vendor.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.PayoutStatusFailed, rows[0].Status)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Contains(t, *rows[0].ErrorMessage, "unsupported mobile money provider")
	require.Len(t, rows[0].Orders, 1)
	assert.Equal(t, order.ID, rows[0].Orders[0].OrderID)

	assert.Zero(t, f.count(t, &models.LedgerEvent{}, "payout_id = ?", rows[0].ID))
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "aggregate_id = ?", rows[0].ID))
	assert.Len(t, f.alerts.subjects, 1)

	again, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, again.Skipped)
	assert.Len(t, f.payouts(t, vendor.ID), 1)
}

func TestRunBatchRecordsUnmatchedBank(t *testing.T) {
	f := newEngineFixture(t)
	vendor := f.bankVendor(t, "Totally Unknown Lender")
	f.order(t, enums.OrderStatusDelivered, share{vendorID: vendor.ID, amount: "25", fee: "5"})

	report, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, f.transfers.recipients)

	rows := f.payouts(t, vendor.ID)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Contains(t, *rows[0].ErrorMessage, "no bank matches")
}

func TestRunBatchRetriesTransientTransferErrors(t *testing.T) {
	f := newEngineFixture(t)
	f.transfers.transferErr = []error{pkgerrors.New(pkgerrors.CodeDependency, "gateway timeout")}
	vendor := f.bankVendor(t, "GCB")
	f.order(t, enums.OrderStatusDelivered, share{vendorID: vendor.ID, amount: "10", fee: "0"})

	report, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, f.transfers.transfers, 2)
	assert.Equal(t, f.transfers.transfers[0].Reference, f.transfers.transfers[1].Reference)
}

func TestRunBatchRecordsRejectedTransfer(t *testing.T) {
	f := newEngineFixture(t)
	f.transfers.transferErr = []error{pkgerrors.New(pkgerrors.CodeValidation, "insufficient balance")}
	vendor := f.bankVendor(t, "GCB")
	f.order(t, enums.OrderStatusDelivered, share{vendorID: vendor.ID, amount: "10", fee: "0"})

	report, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, f.transfers.transfers, 1)

	rows := f.payouts(t, vendor.ID)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, "insufficient balance", *rows[0].ErrorMessage)
	assert.Nil(t, rows[0].TransactionID)
	assert.Len(t, f.alerts.subjects, 1)
}

func TestRunBatchSkipsUnverifiedAndEmptyVendors(t *testing.T) {
	f := newEngineFixture(t)
	pending := dbtest.Vendor(t, f.db, "GH", 5.60, -0.20)
	bankName, account := "GCB", "0011223344"
	dbtest.MustCreate(t, f.db, &models.VendorPayoutMethod{
		VendorID:      pending.ID,
		Method:        enums.PayoutMethodBank,
		Status:        enums.PayoutMethodStatusPending,
		BankName:      &bankName,
		AccountNumber: &account,
	})
	f.order(t, enums.OrderStatusDelivered, share{vendorID: pending.ID, amount: "10", fee: "0"})
	idle := f.bankVendor(t, "GCB")

	report, err := f.engine.RunBatch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Vendors)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, idle.ID, report.Results[0].VendorID)
	assert.Empty(t, f.transfers.transfers)
	assert.Zero(t, f.count(t, &models.Payout{}, "1 = 1"))
}

func TestNetAmount(t *testing.T) {
	commission := decimal.RequireFromString("0.20")
	assert.True(t, NetAmount(decimal.RequireFromString("150"), decimal.RequireFromString("30"), commission).Equal(decimal.RequireFromString("144")))
	assert.True(t, NetAmount(decimal.RequireFromString("0.01"), decimal.Zero, commission).Equal(decimal.RequireFromString("0.01")))
	assert.True(t, NetAmount(decimal.Zero, decimal.Zero, commission).IsZero())
}

func TestNewEngineRejectsBadCommission(t *testing.T) {
	db := dbtest.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	_, err = NewEngine(EngineDeps{
		Tx:       dbtest.TxRunner{DB: db},
		Repo:     NewRepository(db),
		Transfer: &fakeTransfers{},
		Banks:    newResolver(&stubCatalog{}),
		Ledger:   ledgerSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(db), logger.Nop()),
		Config:   config.PayoutsConfig{Commission: decimal.NewFromInt(1)},
	})
	require.Error(t, err)
}
