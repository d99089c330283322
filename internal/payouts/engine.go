// Package payouts pays vendors for delivered orders in periodic batches.
package payouts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/ledger"
	"github.com/angelmondragon/fulfillment-backend/pkg/alert"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/transfer"
)

var hundred = decimal.NewFromInt(100)

// momoNetworks maps vendor-entered providers onto the transfer API's network codes.
var momoNetworks = map[string]string{
	"MTN":        "mtn",
	"VODAFONE":   "vodafone",
	"AIRTELTIGO": "airteltigo",
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transferClient interface {
	CreateRecipient(ctx context.Context, req transfer.RecipientRequest) (string, error)
	InitiateTransfer(ctx context.Context, req transfer.TransferRequest) (transfer.TransferResult, error)
}

type bankResolver interface {
	Resolve(ctx context.Context, name string) (BankMatch, bool, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (uuid.UUID, error)
}

// EngineDeps wires the payout engine. Alerts and Metrics are optional.
type EngineDeps struct {
	Tx       txRunner
	Repo     Repository
	Transfer transferClient
	Banks    bankResolver
	Ledger   ledger.Service
	Outbox   outboxEmitter
	Alerts   alert.Notifier
	Metrics  *metrics.PayoutMetrics
	Config   config.PayoutsConfig
	Currency string
	Logger   *logger.Logger
}

// VendorResult is the outcome of one vendor within a batch.
type VendorResult struct {
	VendorID      uuid.UUID
	PayoutID      uuid.UUID
	Status        string
	Amount        decimal.Decimal
	OrderIDs      []uuid.UUID
	TransactionID string
	Error         string
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Vendors   int
	Succeeded int
	Failed    int
	Skipped   int
	Paid      decimal.Decimal
	Results   []VendorResult
}

// Engine computes vendor earnings and initiates transfers.
type Engine struct {
	tx       txRunner
	repo     Repository
	transfer transferClient
	banks    bankResolver
	ledger   ledger.Service
	outbox   outboxEmitter
	alerts   alert.Notifier
	metrics  *metrics.PayoutMetrics
	cfg      config.PayoutsConfig
	currency string
	logg     *logger.Logger
}

// NewEngine validates deps and fills retry defaults.
func NewEngine(deps EngineDeps) (*Engine, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("payout repository required")
	case deps.Transfer == nil:
		return nil, fmt.Errorf("transfer client required")
	case deps.Banks == nil:
		return nil, fmt.Errorf("bank resolver required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	cfg := deps.Config
	if cfg.Commission.IsNegative() || cfg.Commission.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission must be in [0, 1)")
	}
	if cfg.TransferMaxAttempts == 0 {
		cfg.TransferMaxAttempts = 3
	}
	if cfg.TransferRetryBase <= 0 {
		cfg.TransferRetryBase = 2 * time.Second
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	alerts := deps.Alerts
	if alerts == nil {
		alerts = alert.NewLogNotifier(logg)
	}
	return &Engine{
		tx:       deps.Tx,
		repo:     deps.Repo,
		transfer: deps.Transfer,
		banks:    deps.Banks,
		ledger:   deps.Ledger,
		outbox:   deps.Outbox,
		alerts:   alerts,
		metrics:  deps.Metrics,
		cfg:      cfg,
		currency: strings.ToUpper(strings.TrimSpace(deps.Currency)),
		logg:     logg,
	}, nil
}

// NetAmount is what the vendor receives after commission, rounded to cents.
func NetAmount(productTotal, deliveryTotal, commission decimal.Decimal) decimal.Decimal {
	share := decimal.NewFromInt(1).Sub(commission)
	return productTotal.Add(deliveryTotal).Mul(share).Round(2)
}

// RunBatch pays every vendor with a verified method for its delivered,
// not-yet-covered orders. A failed transfer is recorded and reported, not
// returned; the error aggregates storage failures only.
func (e *Engine) RunBatch(ctx context.Context) (BatchReport, error) {
	report := BatchReport{Paid: decimal.Zero}
	payees, err := e.repo.Payees(ctx)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payees")
	}
	report.Vendors = len(payees)

	var errs error
	for _, payee := range payees {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		result, err := e.payVendor(ctx, payee)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", payee.Vendor.ID, err))
			continue
		}
		switch result.Status {
		case string(enums.PayoutStatusSuccess):
			report.Succeeded++
			report.Paid = report.Paid.Add(result.Amount)
		case string(enums.PayoutStatusFailed):
			report.Failed++
		default:
			report.Skipped++
		}
		report.Results = append(report.Results, result)
		e.metrics.Observe(result.Status, result.Amount)
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"vendors":   report.Vendors,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"paid":      report.Paid.StringFixed(2),
	}), "payout batch complete")
	return report, errs
}

func (e *Engine) payVendor(ctx context.Context, payee Payee) (VendorResult, error) {
	ctx = e.logg.WithVendorID(ctx, payee.Vendor.ID.String())
	result := VendorResult{VendorID: payee.Vendor.ID, Status: metrics.PayoutSkipped, Amount: decimal.Zero}

	orders, err := e.repo.UnpaidOrders(ctx, payee.Vendor.ID)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unpaid orders")
	}
	if len(orders) == 0 {
		e.logg.Debug(ctx, "no eligible orders")
		return result, nil
	}

	productTotal, deliveryTotal := decimal.Zero, decimal.Zero
	for _, o := range orders {
		productTotal = productTotal.Add(o.ProductTotal)
		deliveryTotal = deliveryTotal.Add(o.DeliveryFee)
		result.OrderIDs = append(result.OrderIDs, o.OrderID)
	}
	net := NetAmount(productTotal, deliveryTotal, e.cfg.Commission)
	if !net.IsPositive() {
		e.logg.Info(e.logg.WithField(ctx, "orders", len(orders)), "nothing to pay")
		return result, nil
	}
	result.Amount = net

	payout := &models.Payout{
		ID:            uuid.New(),
		VendorID:      payee.Vendor.ID,
		Amount:        net,
		ProductTotal:  productTotal,
		DeliveryTotal: deliveryTotal,
		Status:        enums.PayoutStatusFailed,
	}
	for _, o := range orders {
		payout.Orders = append(payout.Orders, models.PayoutOrder{OrderID: o.OrderID, VendorID: payee.Vendor.ID})
	}
	result.PayoutID = payout.ID

	recipient, score, err := e.recipient(ctx, payee)
	if score > 0 {
		payout.MatchScore = &score
	}
	if err == nil {
		var res transfer.TransferResult
		res, err = e.send(ctx, recipient, net, payout.ID, orders)
		if err == nil {
			payout.Status = enums.PayoutStatusSuccess
			txID := lo.CoalesceOrEmpty(res.Reference, res.TransferCode)
			payout.TransactionID = &txID
			result.TransactionID = txID
		}
	}
	if err != nil {
		msg := err.Error()
		if typed := pkgerrors.As(err); typed != nil {
			msg = typed.Message()
		}
		payout.ErrorMessage = &msg
		result.Error = msg
	}
	result.Status = string(payout.Status)

	if err := e.record(ctx, payout, orders); err != nil {
		if payout.Status == enums.PayoutStatusSuccess {
			e.alert(ctx, payee, payout, fmt.Sprintf("transfer %s succeeded but the payout could not be recorded: %v", result.TransactionID, err))
		}
		return result, err
	}

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"payout_id": payout.ID.String(),
		"amount":    net.StringFixed(2),
		"orders":    len(orders),
	})
	if payout.Status == enums.PayoutStatusSuccess {
		e.logg.Info(logCtx, "vendor paid")
		return result, nil
	}
	e.logg.Warn(e.logg.WithField(logCtx, "error", result.Error), "vendor payout failed")
	if e.cfg.AlertOnFailure {
		e.alert(ctx, payee, payout, result.Error)
	}
	return result, nil
}

// recipient registers the vendor's payout destination with the provider.
// score is the bank-name match confidence, zero for mobile money.
func (e *Engine) recipient(ctx context.Context, payee Payee) (string, float64, error) {
	method := payee.Method
	name := strings.TrimSpace(method.AccountName)
	if name == "" {
		name = payee.Vendor.Name
	}

	switch method.Method {
	case enums.PayoutMethodMomo:
		number, provider := deref(method.MomoNumber), strings.ToUpper(strings.TrimSpace(deref(method.MomoProvider)))
		if number == "" || provider == "" {
			return "", 0, pkgerrors.New(pkgerrors.CodeValidation, "mobile money number and provider are required")
		}
		network, ok := momoNetworks[provider]
		if !ok {
			return "", 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported mobile money provider %q", provider))
		}
		code, err := e.transfer.CreateRecipient(ctx, transfer.RecipientRequest{
			Type:          transfer.RecipientTypeMomo,
			Name:          name,
			AccountNumber: number,
			BankCode:      network,
			Currency:      e.currency,
		})
		return code, 0, err

	case enums.PayoutMethodBank:
		account, bankName := deref(method.AccountNumber), deref(method.BankName)
		if account == "" || bankName == "" {
			return "", 0, pkgerrors.New(pkgerrors.CodeValidation, "bank name and account number are required")
		}
		match, ok, err := e.banks.Resolve(ctx, bankName)
		if err != nil {
			return "", 0, err
		}
		if !ok {
			return "", 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no bank matches %q", bankName))
		}
		e.logg.Info(e.logg.WithFields(ctx, map[string]any{
			"bank_name":  bankName,
			"bank_match": match.Name,
			"match_via":  match.Via,
			"score":      match.Score,
		}), "bank resolved")
		code, err := e.transfer.CreateRecipient(ctx, transfer.RecipientRequest{
			Type:          transfer.RecipientTypeBank,
			Name:          name,
			AccountNumber: account,
			BankCode:      match.Code,
			Currency:      e.currency,
		})
		return code, match.Score, err

	default:
		return "", 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payout method %q", method.Method))
	}
}

// send initiates the transfer, retrying transient provider errors. The payout
// id is the provider reference so a retried request cannot pay twice.
func (e *Engine) send(ctx context.Context, recipient string, net decimal.Decimal, payoutID uuid.UUID, orders []UnpaidOrder) (transfer.TransferResult, error) {
	numbers := make([]string, len(orders))
	for i, o := range orders {
		numbers[i] = o.OrderNumber
	}
	req := transfer.TransferRequest{
		RecipientCode: recipient,
		AmountMinor:   net.Mul(hundred).Round(0).IntPart(),
		Reason:        "Payout for orders " + strings.Join(numbers, ", "),
		Reference:     payoutID.String(),
	}

	backoff := retry.WithMaxRetries(e.cfg.TransferMaxAttempts-1, retry.NewExponential(e.cfg.TransferRetryBase))
	var res transfer.TransferResult
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		res, err = e.transfer.InitiateTransfer(ctx, req)
		if err != nil && pkgerrors.IsRetryable(err) {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "transfer attempt failed")
			return retry.RetryableError(err)
		}
		return err
	})
	return res, err
}

// record stores the payout, its ledger entry on success and the result event.
func (e *Engine) record(ctx context.Context, payout *models.Payout, orders []UnpaidOrder) error {
	orderIDs := make([]uuid.UUID, len(orders))
	numbers := make([]string, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.OrderID
		numbers[i] = o.OrderNumber
	}
	ctx = context.WithoutCancel(ctx)

	return e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := e.repo.WithTx(tx).CreatePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}

		if payout.Status == enums.PayoutStatusSuccess {
			metadata, err := json.Marshal(map[string]any{
				"order_numbers":  numbers,
				"transaction_id": deref(payout.TransactionID),
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal ledger metadata")
			}
			if _, err := e.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
				VendorID:    &payout.VendorID,
				PayoutID:    &payout.ID,
				Type:        enums.LedgerEventTypeVendorPayout,
				AmountMinor: payout.Amount.Mul(hundred).Round(0).IntPart(),
				Metadata:    metadata,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout ledger event")
			}
		}

		_, err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutResult,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Actor:         &outbox.ActorRef{System: "payout-batch"},
			Data: payloads.PayoutResultEvent{
				PayoutID:      payout.ID,
				VendorID:      payout.VendorID,
				Status:        payout.Status,
				Amount:        payout.Amount,
				OrderIDs:      orderIDs,
				TransactionID: deref(payout.TransactionID),
				ErrorMessage:  deref(payout.ErrorMessage),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout result")
		}
		return nil
	})
}

func (e *Engine) alert(ctx context.Context, payee Payee, payout *models.Payout, reason string) {
	subject := fmt.Sprintf("payout failed for vendor %s", payee.Vendor.Name)
	body := fmt.Sprintf("vendor: %s\npayout: %s\namount: %s\norders: %d\nerror: %s",
		payee.Vendor.ID, payout.ID, payout.Amount.StringFixed(2), len(payout.Orders), reason)
	if err := e.alerts.Notify(context.WithoutCancel(ctx), subject, body); err != nil {
		e.logg.Error(ctx, "payout alert not delivered", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
