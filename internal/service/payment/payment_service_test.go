// internal/service/payment/payment_service_test.go
package payment

import (
	"context"
	"database/sql"
	"testing"

	"fanpay-service/internal/config"
	evtypes "fanpay-service/internal/domain/events"
	"fanpay-service/internal/domain/subscription"
	"fanpay-service/internal/domain/transaction"
	"fanpay-service/internal/domain/user"
	wstypes "fanpay-service/internal/domain/websocket"
	stripegw "fanpay-service/internal/gateway/stripe"
	xerrors "fanpay-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------- fakes ----------

type fakeTxnStore struct {
	rows    map[string]*transaction.Transaction
	updates int
}

func newFakeTxnStore() *fakeTxnStore {
	return &fakeTxnStore{rows: map[string]*transaction.Transaction{}}
}

func (f *fakeTxnStore) Create(ctx context.Context, txn *transaction.Transaction) error {
	f.rows[txn.ID] = txn
	return nil
}

func (f *fakeTxnStore) FindByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	txn, ok := f.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return txn, nil
}

func (f *fakeTxnStore) FindByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error) {
	for _, txn := range f.rows {
		if txn.InvoiceID.Valid && txn.InvoiceID.String == invoiceID {
			return txn, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeTxnStore) Update(ctx context.Context, txn *transaction.Transaction) error {
	f.rows[txn.ID] = txn
	f.updates++
	return nil
}

func (f *fakeTxnStore) Search(ctx context.Context, filters *transaction.SearchFilters) (*transaction.SearchResult, error) {
	result := &transaction.SearchResult{Page: filters.Page, Limit: filters.Limit}
	for _, txn := range f.rows {
		if filters.SourceID != "" && txn.SourceID != filters.SourceID {
			continue
		}
		result.Data = append(result.Data, transaction.SearchRow{Transaction: *txn})
		result.Total++
	}
	return result, nil
}

func (f *fakeTxnStore) FindByQuery(ctx context.Context, q *transaction.Query) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for _, txn := range f.rows {
		if q.SourceID != "" && txn.SourceID != q.SourceID {
			continue
		}
		if q.TargetID != "" && txn.TargetID != q.TargetID {
			continue
		}
		if q.Status != "" && txn.Status != q.Status {
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

type fakeSubStore struct {
	rows map[string]*subscription.Subscription
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{rows: map[string]*subscription.Subscription{}}
}

func (f *fakeSubStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	f.rows[sub.ID] = sub
	return nil
}

func (f *fakeSubStore) FindByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, ok := f.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubStore) FindByGatewaySubscriptionID(ctx context.Context, gatewaySubID string) (*subscription.Subscription, error) {
	for _, sub := range f.rows {
		if sub.SubscriptionID.Valid && sub.SubscriptionID.String == gatewaySubID {
			return sub, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSubStore) FindByUserAndPerformer(ctx context.Context, userID, performerID string) (*subscription.Subscription, error) {
	for _, sub := range f.rows {
		if sub.UserID == userID && sub.PerformerID == performerID {
			return sub, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSubStore) FindActiveByUserAndPerformer(ctx context.Context, userID, performerID string) (*subscription.Subscription, error) {
	for _, sub := range f.rows {
		if sub.UserID == userID && sub.PerformerID == performerID && sub.Status == subscription.StatusActive {
			return sub, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSubStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	f.rows[sub.ID] = sub
	return nil
}

type fakeUserStore struct {
	rows          map[string]*user.User
	subCountDelta int
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*user.User, error) {
	u, ok := f.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) UpdateSubscriptionCount(ctx context.Context, id string, delta int) error {
	f.subCountDelta += delta
	return nil
}

type fakePerformerStore struct {
	rows            map[string]*user.Performer
	subscriberDelta int
}

func (f *fakePerformerStore) FindByID(ctx context.Context, id string) (*user.Performer, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return p, nil
}

func (f *fakePerformerStore) UpdateSubscriberCount(ctx context.Context, id string, delta int) error {
	f.subscriberDelta += delta
	return nil
}

type fakeCoupons struct {
	snapshot *transaction.CouponSnapshot
	total    float64
	err      error
}

func (f *fakeCoupons) Redeem(ctx context.Context, code string, price float64) (*transaction.CouponSnapshot, float64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.snapshot, f.total, nil
}

type fakeCardGateway struct {
	chargeResult *stripegw.ChargeResult
	planResult   *stripegw.PlanResult
	cancelErr    error
	cancelled    []string
	charges      []*stripegw.ChargeRequest
}

func (f *fakeCardGateway) ChargeOnce(ctx context.Context, req *stripegw.ChargeRequest) (*stripegw.ChargeResult, error) {
	f.charges = append(f.charges, req)
	return f.chargeResult, nil
}

func (f *fakeCardGateway) CreateRecurringPlan(ctx context.Context, req *stripegw.PlanRequest) (*stripegw.PlanResult, error) {
	return f.planResult, nil
}

func (f *fakeCardGateway) CancelRecurringPlan(ctx context.Context, gatewaySubscriptionID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, gatewaySubscriptionID)
	return nil
}

type fakeRecurringGateway struct {
	cancelErr error
	cancelled []string
}

func (f *fakeRecurringGateway) SingleChargeParams(transactionID string, price float64) map[string]string {
	return map[string]string{"X-transactionId": transactionID, "redirectUrl": "https://pay.example/" + transactionID}
}

func (f *fakeRecurringGateway) RecurringParams(transactionID string, price float64, yearly bool) map[string]string {
	return map[string]string{"X-transactionId": transactionID, "redirectUrl": "https://pay.example/" + transactionID}
}

func (f *fakeRecurringGateway) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, gatewaySubscriptionID)
	return nil
}

type fakeNotifier struct {
	redirects []*wstypes.PaymentRedirectData
	confirms  []*wstypes.PaymentConfirmData
}

func (f *fakeNotifier) EmitPaymentRedirect(userID string, data *wstypes.PaymentRedirectData) {
	f.redirects = append(f.redirects, data)
}

func (f *fakeNotifier) EmitPaymentConfirm(userID string, data *wstypes.PaymentConfirmData) {
	f.confirms = append(f.confirms, data)
}

type fakeBus struct {
	events []evtypes.Event
}

func (f *fakeBus) Publish(ctx context.Context, e evtypes.Event) {
	f.events = append(f.events, e)
}

type fakeSettings struct {
	gateway    string
	minPrice   float64
	maxPrice   float64
	commission float64
	adminEmail string
}

func (f *fakeSettings) ActiveGateway() string                  { return f.gateway }
func (f *fakeSettings) Stripe() (config.StripeSettings, error) { return config.StripeSettings{}, nil }
func (f *fakeSettings) CCBill() (config.CCBillSettings, error) { return config.CCBillSettings{}, nil }
func (f *fakeSettings) WalletBounds() (float64, float64)       { return f.minPrice, f.maxPrice }
func (f *fakeSettings) AdminEmail() string                     { return f.adminEmail }
func (f *fakeSettings) CommissionRate() float64                { return f.commission }

// ---------- fixture ----------

type fixture struct {
	svc        *Service
	txns       *fakeTxnStore
	subs       *fakeSubStore
	users      *fakeUserStore
	performers *fakePerformerStore
	card       *fakeCardGateway
	recurring  *fakeRecurringGateway
	notifier   *fakeNotifier
	bus        *fakeBus
	settings   *fakeSettings
}

func newFixture() *fixture {
	f := &fixture{
		txns: newFakeTxnStore(),
		subs: newFakeSubStore(),
		users: &fakeUserStore{rows: map[string]*user.User{
			"user-1":  {ID: "user-1", Name: "Ann", Email: "ann@example.com"},
			"user-2":  {ID: "user-2", Name: "Bob", Email: "bob@example.com"},
			"admin-1": {ID: "admin-1", Name: "Root", IsAdmin: true},
		}},
		performers: &fakePerformerStore{rows: map[string]*user.Performer{
			"perf-1": {ID: "perf-1", Name: "Star", Email: "star@example.com", MonthlyPrice: 9.99, YearlyPrice: 99},
		}},
		card: &fakeCardGateway{
			chargeResult: &stripegw.ChargeResult{IntentID: "pi_1", ClientSecret: "secret_1", Status: "processing"},
			planResult:   &stripegw.PlanResult{SubscriptionID: "sub_gw_1", InvoiceID: "in_1", ClientSecret: "secret_sub"},
		},
		recurring: &fakeRecurringGateway{},
		notifier:  &fakeNotifier{},
		bus:       &fakeBus{},
		settings:  &fakeSettings{gateway: "ccbill", minPrice: 1, maxPrice: 1000, commission: 0.2},
	}

	f.svc = NewService(
		f.txns, f.subs, f.users, f.performers,
		&fakeCoupons{},
		f.card, f.recurring,
		f.notifier, f.bus, f.settings,
		"https://app.example.com",
		zap.NewNop(),
	)
	return f
}

// ---------- token purchases ----------

func TestPurchaseTokensRejectsOutOfBoundsAmount(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PurchaseTokens(context.Background(), "user-1", &transaction.PurchaseTokensInput{
		TargetID: "pkg-1", Amount: 0.5, Tokens: 10,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = f.svc.PurchaseTokens(context.Background(), "user-1", &transaction.PurchaseTokensInput{
		TargetID: "pkg-1", Amount: 5000, Tokens: 10,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Empty(t, f.txns.rows)
}

func TestPurchaseTokensRedirectFlow(t *testing.T) {
	f := newFixture()

	result, err := f.svc.PurchaseTokens(context.Background(), "user-1", &transaction.PurchaseTokensInput{
		TargetID: "pkg-1", Amount: 50, Tokens: 500,
	})
	require.NoError(t, err)

	txn := result.Transaction
	assert.Equal(t, transaction.StatusCreated, txn.Status)
	assert.Equal(t, transaction.TypeTokenPackage, txn.Type)
	assert.Equal(t, 50.0, txn.TotalPrice)
	assert.Equal(t, txn.ID, result.RedirectParams["X-transactionId"])
	assert.NotEmpty(t, result.RedirectURL)

	// Nothing settles before the webhook arrives.
	assert.Empty(t, f.bus.events)
	assert.Empty(t, f.notifier.redirects)
}

func TestPurchaseTokensAppliesCoupon(t *testing.T) {
	f := newFixture()
	f.svc.coupons = &fakeCoupons{
		snapshot: &transaction.CouponSnapshot{Code: "SAVE20", Value: 0.2},
		total:    40,
	}

	result, err := f.svc.PurchaseTokens(context.Background(), "user-1", &transaction.PurchaseTokensInput{
		TargetID: "pkg-1", Amount: 50, Tokens: 500, CouponCode: "SAVE20",
	})
	require.NoError(t, err)

	assert.Equal(t, 50.0, result.Transaction.OriginalPrice)
	assert.Equal(t, 40.0, result.Transaction.TotalPrice)
	require.NotNil(t, result.Transaction.CouponInfo)
	assert.Equal(t, "SAVE20", result.Transaction.CouponInfo.Code)
}

func TestPurchaseTokensCardFlowRequiresCard(t *testing.T) {
	f := newFixture()
	f.settings.gateway = "stripe"

	_, err := f.svc.PurchaseTokens(context.Background(), "user-1", &transaction.PurchaseTokensInput{
		TargetID: "pkg-1", Amount: 50, Tokens: 500,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestPurchaseTokensCardFlowStoresIntent(t *testing.T) {
	f := newFixture()
	f.settings.gateway = "stripe"

	result, err := f.svc.PurchaseTokens(context.Background(), "user-1", &transaction.PurchaseTokensInput{
		TargetID: "pkg-1", Amount: 50, Tokens: 500, CardID: "pm_1",
	})
	require.NoError(t, err)

	assert.Equal(t, "secret_1", result.ClientSecret)
	assert.Equal(t, "pi_1", result.Transaction.InvoiceID.String)
	require.Len(t, f.card.charges, 1)
	assert.Equal(t, result.Transaction.ID, f.card.charges[0].TransactionID)
}

// ---------- subscriptions ----------

func TestSubscribeFreeTierSettlesSynchronously(t *testing.T) {
	f := newFixture()

	result, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeFreeSubscription,
	})
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusSuccess, result.Transaction.Status)
	assert.NotEmpty(t, result.RedirectURL)

	sub, err := f.subs.FindByUserAndPerformer(context.Background(), "user-1", "perf-1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.True(t, sub.UsedFreeSubscription)

	assert.Equal(t, 1, f.performers.subscriberDelta)
	assert.Equal(t, 1, f.users.subCountDelta)
	require.Len(t, f.bus.events, 1)
	assert.Equal(t, evtypes.ChannelTransactionSuccess, f.bus.events[0].Channel)
	require.Len(t, f.notifier.redirects, 1)
}

func TestSubscribeFreeTierOnlyOnce(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeFreeSubscription,
	})
	require.NoError(t, err)

	// Even after cancelling, the free tier stays burned for this pair.
	sub, err := f.subs.FindByUserAndPerformer(context.Background(), "user-1", "perf-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeactivateSubscription(context.Background(), sub))

	_, err = f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeFreeSubscription,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestSubscribeSameTierWhileActiveRejected(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeFreeSubscription,
	})
	require.NoError(t, err)

	_, err = f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeFreeSubscription,
	})
	assert.ErrorIs(t, err, xerrors.ErrConflict)
}

func TestSubscribeUpgradeFromActiveFreeTierAllowed(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeFreeSubscription,
	})
	require.NoError(t, err)

	result, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeMonthlySubscription,
	})
	require.NoError(t, err)
	assert.Equal(t, 9.99, result.Transaction.TotalPrice)
}

func TestSubscribeRejectsNonSubscriptionType(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeTokenPackage,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestSubscribeMonthlyRedirectFlowUsesPerformerPrice(t *testing.T) {
	f := newFixture()

	result, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeMonthlySubscription,
	})
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusCreated, result.Transaction.Status)
	assert.Equal(t, 9.99, result.Transaction.TotalPrice)
	assert.Equal(t, result.Transaction.ID, result.RedirectParams["X-transactionId"])
	assert.Empty(t, f.bus.events)
}

func TestSubscribeCardFlowCreatesPlanAndRow(t *testing.T) {
	f := newFixture()
	f.settings.gateway = "stripe"

	result, err := f.svc.SubscribePerformer(context.Background(), "user-1", &transaction.SubscribeInput{
		PerformerID: "perf-1", Type: transaction.TypeYearlySubscription, CardID: "pm_1",
	})
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusCreated, result.Transaction.Status)
	assert.Equal(t, "sub_gw_1", result.Transaction.SubscriptionID.String)
	assert.Equal(t, "secret_sub", result.ClientSecret)

	// The row must exist so subscription webhooks can correlate.
	sub, err := f.subs.FindByGatewaySubscriptionID(context.Background(), "sub_gw_1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub.UserID)
}

// ---------- cancellation ----------

func cancelFixture(t *testing.T, gatewaySubID string) (*fixture, *subscription.Subscription) {
	t.Helper()
	f := newFixture()

	sub := &subscription.Subscription{
		ID:               "sub-local-1",
		UserID:           "user-1",
		PerformerID:      "perf-1",
		SubscriptionType: subscription.TypeMonthly,
		Status:           subscription.StatusActive,
		PaymentGateway:   transaction.GatewayCCBill,
	}
	if gatewaySubID != "" {
		sub.SubscriptionID = sql.NullString{String: gatewaySubID, Valid: true}
	}
	require.NoError(t, f.subs.Create(context.Background(), sub))
	return f, sub
}

func TestCancelSubscriptionRequiresOwnerOrAdmin(t *testing.T) {
	f, _ := cancelFixture(t, "gw-1")

	_, err := f.svc.CancelSubscription(context.Background(), "user-2", false, "sub-local-1")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	sub, _ := f.subs.FindByID(context.Background(), "sub-local-1")
	assert.Equal(t, subscription.StatusActive, sub.Status)

	_, err = f.svc.CancelSubscription(context.Background(), "admin-1", true, "sub-local-1")
	require.NoError(t, err)
}

func TestCancelSubscriptionGatewayFirst(t *testing.T) {
	f, _ := cancelFixture(t, "gw-1")

	_, err := f.svc.CancelSubscription(context.Background(), "user-1", false, "sub-local-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"gw-1"}, f.recurring.cancelled)

	sub, _ := f.subs.FindByID(context.Background(), "sub-local-1")
	assert.Equal(t, subscription.StatusDeactivated, sub.Status)
	assert.Equal(t, -1, f.performers.subscriberDelta)
	assert.Equal(t, -1, f.users.subCountDelta)

	require.Len(t, f.bus.events, 1)
	assert.Equal(t, evtypes.ChannelSubscriptionCancel, f.bus.events[0].Channel)
}

func TestCancelSubscriptionGatewayFailureLeavesState(t *testing.T) {
	f, _ := cancelFixture(t, "gw-1")
	f.recurring.cancelErr = xerrors.NewGatewayError("ccbill", "-3", "No record was found for the given subscription.")

	_, err := f.svc.CancelSubscription(context.Background(), "user-1", false, "sub-local-1")
	require.Error(t, err)

	gwErr, ok := xerrors.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "-3", gwErr.Code)

	// The subscription stays billable until the gateway confirms.
	sub, _ := f.subs.FindByID(context.Background(), "sub-local-1")
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Empty(t, f.bus.events)
}

func TestCancelSubscriptionWithoutGatewayIDIsLocal(t *testing.T) {
	f, _ := cancelFixture(t, "")

	_, err := f.svc.CancelSubscription(context.Background(), "user-1", false, "sub-local-1")
	require.NoError(t, err)

	assert.Empty(t, f.recurring.cancelled)
	sub, _ := f.subs.FindByID(context.Background(), "sub-local-1")
	assert.Equal(t, subscription.StatusDeactivated, sub.Status)
}

// ---------- commit helpers ----------

func TestCommitSuccessIsIdempotent(t *testing.T) {
	f := newFixture()

	txn := &transaction.Transaction{
		ID:       "01hqzx3v9k8w7e6r5t4y3u2i1o",
		Source:   "user",
		SourceID: "user-1",
		Type:     transaction.TypeTokenPackage,
		Status:   transaction.StatusCreated,
	}
	require.NoError(t, f.txns.Create(context.Background(), txn))

	require.NoError(t, f.svc.CommitSuccess(context.Background(), txn, map[string]interface{}{"k": "v"}, true))
	assert.Equal(t, transaction.StatusSuccess, txn.Status)
	assert.Len(t, f.bus.events, 1)
	assert.Len(t, f.notifier.redirects, 1)

	// A replayed webhook must not publish or notify again.
	require.NoError(t, f.svc.CommitSuccess(context.Background(), txn, nil, true))
	assert.Len(t, f.bus.events, 1)
	assert.Len(t, f.notifier.redirects, 1)
}

func TestCommitSuccessIgnoresTerminalTransaction(t *testing.T) {
	f := newFixture()

	txn := &transaction.Transaction{ID: "t1", SourceID: "user-1", Status: transaction.StatusFail}
	require.NoError(t, f.txns.Create(context.Background(), txn))

	// Already terminal: tolerated as a no-op, status untouched.
	require.NoError(t, f.svc.CommitSuccess(context.Background(), txn, nil, false))
	assert.Equal(t, transaction.StatusFail, txn.Status)
	assert.Empty(t, f.bus.events)
}

func TestCreateRenewalTransactionKeepsOriginal(t *testing.T) {
	f := newFixture()

	original := &transaction.Transaction{
		ID:             "orig-1",
		SourceID:       "user-1",
		Type:           transaction.TypeMonthlySubscription,
		PaymentGateway: transaction.GatewayCCBill,
		TotalPrice:     9.99,
		Status:         transaction.StatusSuccess,
	}
	require.NoError(t, f.txns.Create(context.Background(), original))

	sub := &subscription.Subscription{
		ID:               "sub-1",
		UserID:           "user-1",
		PerformerID:      "perf-1",
		SubscriptionType: subscription.TypeMonthly,
		Status:           subscription.StatusActive,
		PaymentGateway:   transaction.GatewayCCBill,
		SubscriptionID:   sql.NullString{String: "gw-1", Valid: true},
	}
	require.NoError(t, f.subs.Create(context.Background(), sub))

	renewal, err := f.svc.CreateRenewalTransaction(context.Background(), original, sub, 9.99, nil)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, renewal.ID)
	assert.Equal(t, transaction.StatusSuccess, renewal.Status)
	assert.Equal(t, 9.99, renewal.TotalPrice)

	// The original row is never touched by a renewal.
	stored, _ := f.txns.FindByID(context.Background(), "orig-1")
	assert.Equal(t, transaction.StatusSuccess, stored.Status)
	assert.Equal(t, 9.99, stored.TotalPrice)

	require.Len(t, f.bus.events, 1)
	published := f.bus.events[0].Data.(transaction.Transaction)
	assert.Equal(t, renewal.ID, published.ID)
}

func TestCreateRenewalTransactionAmountFallback(t *testing.T) {
	f := newFixture()

	original := &transaction.Transaction{
		ID: "orig-1", SourceID: "user-1",
		Type: transaction.TypeMonthlySubscription, TotalPrice: 9.99,
		Status: transaction.StatusSuccess,
	}
	sub := &subscription.Subscription{
		ID: "sub-1", UserID: "user-1", PerformerID: "perf-1",
		SubscriptionType: subscription.TypeMonthly,
		Status:           subscription.StatusActive,
	}
	require.NoError(t, f.subs.Create(context.Background(), sub))

	renewal, err := f.svc.CreateRenewalTransaction(context.Background(), original, sub, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 9.99, renewal.TotalPrice)
}

// ---------- search ----------

func TestSearchUserTransactionsForcesSource(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.txns.Create(context.Background(), &transaction.Transaction{ID: "t1", SourceID: "user-1"}))
	require.NoError(t, f.txns.Create(context.Background(), &transaction.Transaction{ID: "t2", SourceID: "user-2"}))

	result, err := f.svc.SearchUserTransactions(context.Background(), "user-1", &transaction.SearchFilters{
		SourceID: "user-2", // crafted filter must not widen the scope
	})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "user-1", result.Data[0].SourceID)
}

func TestUnknownGatewayRejected(t *testing.T) {
	f := newFixture()
	f.settings.gateway = "paypal"

	_, err := f.svc.PurchaseTokens(context.Background(), "user-1", &transaction.PurchaseTokensInput{
		TargetID: "pkg-1", Amount: 50, Tokens: 500,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
