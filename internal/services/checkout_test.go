package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketmarket/internal/models"
)

const testGatewayTimeout = 5 * time.Second

// MockInventoryStore for testing
type MockInventoryStore struct {
	types      map[int]*models.TicketType
	decrements int
	increments int
}

func NewMockInventoryStore(types ...*models.TicketType) *MockInventoryStore {
	m := &MockInventoryStore{types: make(map[int]*models.TicketType)}
	for _, tt := range types {
		m.types[tt.ID] = tt
	}
	return m
}

func (m *MockInventoryStore) LockForUpdate(ctx context.Context, tx *sql.Tx, id int) (*models.TicketType, error) {
	tt, ok := m.types[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *tt
	return &copied, nil
}

func (m *MockInventoryStore) Decrement(ctx context.Context, tx *sql.Tx, id, qty int) (bool, error) {
	tt, ok := m.types[id]
	if !ok || tt.QuantityLeft < qty {
		return false, nil
	}
	tt.QuantityLeft -= qty
	m.decrements++
	return true, nil
}

func (m *MockInventoryStore) Increment(ctx context.Context, tx *sql.Tx, id, qty int) error {
	if tt, ok := m.types[id]; ok {
		tt.QuantityLeft += qty
	}
	m.increments++
	return nil
}

// MockEventStore for testing
type MockEventStore struct {
	events map[int]*models.Event
}

func NewMockEventStore(events ...*models.Event) *MockEventStore {
	m := &MockEventStore{events: make(map[int]*models.Event)}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *MockEventStore) GetByIDTx(ctx context.Context, tx *sql.Tx, id int) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, models.ErrNotFound
}

// MockCartStore for testing
type MockCartStore struct {
	lines   []*models.CartLine
	deleted []int
}

func (m *MockCartStore) GetOrCreate(ctx context.Context, userID int) (*models.Cart, error) {
	return &models.Cart{ID: 1, UserID: userID}, nil
}

func (m *MockCartStore) ListLinesTx(ctx context.Context, tx *sql.Tx, cartID int) ([]*models.CartLine, error) {
	return m.lines, nil
}

func (m *MockCartStore) DeleteLinesTx(ctx context.Context, tx *sql.Tx, cartID int, ticketTypeIDs []int) error {
	m.deleted = append(m.deleted, ticketTypeIDs...)
	return nil
}

// MockPaymentStore for testing
type MockPaymentStore struct {
	payments          []*models.Payment
	tickets           []*models.Ticket
	purchases         []*models.Purchase
	refunds           []*models.Refund
	refundedTickets   []int
	createPaymentErr  error
	ticketsByID       map[int]*models.Ticket
	purchasesByTicket map[int]*models.Purchase
	paymentsByID      map[int]*models.Payment
	refundedSoFar     int
	nextID            int
}

func NewMockPaymentStore() *MockPaymentStore {
	return &MockPaymentStore{
		ticketsByID:       make(map[int]*models.Ticket),
		purchasesByTicket: make(map[int]*models.Purchase),
		paymentsByID:      make(map[int]*models.Payment),
		nextID:            1,
	}
}

func (m *MockPaymentStore) CreatePayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) (*models.Payment, error) {
	if m.createPaymentErr != nil {
		return nil, m.createPaymentErr
	}
	created := *payment
	created.ID = m.nextID
	m.nextID++
	m.payments = append(m.payments, &created)
	return &created, nil
}

func (m *MockPaymentStore) MintTicket(ctx context.Context, tx *sql.Tx, ticket *models.Ticket) (*models.Ticket, error) {
	minted := *ticket
	minted.ID = m.nextID
	m.nextID++
	minted.Status = models.TicketActive
	m.tickets = append(m.tickets, &minted)
	return &minted, nil
}

func (m *MockPaymentStore) CreatePurchase(ctx context.Context, tx *sql.Tx, paymentID, ticketID, amount int) (*models.Purchase, error) {
	purchase := &models.Purchase{ID: m.nextID, PaymentID: paymentID, TicketID: ticketID, Amount: amount}
	m.nextID++
	m.purchases = append(m.purchases, purchase)
	return purchase, nil
}

func (m *MockPaymentStore) GetTicketForUpdate(ctx context.Context, tx *sql.Tx, id int) (*models.Ticket, error) {
	if t, ok := m.ticketsByID[id]; ok {
		return t, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockPaymentStore) GetPurchaseByTicket(ctx context.Context, tx *sql.Tx, ticketID int) (*models.Purchase, error) {
	if p, ok := m.purchasesByTicket[ticketID]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockPaymentStore) LockPayment(ctx context.Context, tx *sql.Tx, id int) (*models.Payment, error) {
	if p, ok := m.paymentsByID[id]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockPaymentStore) SumRefunds(ctx context.Context, tx *sql.Tx, paymentID int) (int, error) {
	return m.refundedSoFar, nil
}

func (m *MockPaymentStore) CreateRefund(ctx context.Context, tx *sql.Tx, refund *models.Refund) (*models.Refund, error) {
	created := *refund
	created.ID = m.nextID
	m.nextID++
	m.refunds = append(m.refunds, &created)
	return &created, nil
}

func (m *MockPaymentStore) MarkTicketRefunded(ctx context.Context, tx *sql.Tx, id int) error {
	m.refundedTickets = append(m.refundedTickets, id)
	return nil
}

// MockMethodStore for testing
type MockMethodStore struct {
	method *models.PaymentMethod
}

func (m *MockMethodStore) GetByID(ctx context.Context, id int) (*models.PaymentMethod, error) {
	if m.method != nil && m.method.ID == id {
		return m.method, nil
	}
	return nil, models.ErrNotFound
}

// RecordingGateway for testing
type RecordingGateway struct {
	authorizeErr     error
	refundErr        error
	authorizedAmount int
	authorizeCalls   int
	refundedAmount   int
	refundCalls      int
}

func (g *RecordingGateway) Verify(ctx context.Context, card *models.Card) (string, error) {
	return "test-account", nil
}

func (g *RecordingGateway) Authorize(ctx context.Context, accountID, cvv string, amount int, currency string) (*GatewayTransaction, error) {
	g.authorizeCalls++
	if g.authorizeErr != nil {
		return nil, g.authorizeErr
	}
	g.authorizedAmount = amount
	return &GatewayTransaction{ID: "txn", Account: accountID, Amount: amount, Currency: currency}, nil
}

func (g *RecordingGateway) Refund(ctx context.Context, accountID string, amount int, currency string) (*GatewayTransaction, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refundedAmount = amount
	return &GatewayTransaction{ID: "txn", Account: accountID, Amount: amount, Currency: currency}, nil
}

type checkoutFixture struct {
	service   *CheckoutService
	inventory *MockInventoryStore
	cart      *MockCartStore
	payments  *MockPaymentStore
	gateway   *RecordingGateway
}

func newCheckoutFixture(t *testing.T, cart *MockCartStore, inventory *MockInventoryStore, events *MockEventStore, payments *MockPaymentStore, gateway *RecordingGateway) *checkoutFixture {
	method := &models.PaymentMethod{ID: 1, UserID: 7, GatewayAccountID: "test-account"}
	service := NewCheckoutService(
		newTestDB(t), cart, inventory, events, payments,
		&MockMethodStore{method: method},
		gateway, NewLogNotifier(), "USD", testGatewayTimeout,
	)
	return &checkoutFixture{service: service, inventory: inventory, cart: cart, payments: payments, gateway: gateway}
}

func upcomingEvent(id, organizerID int) *models.Event {
	return &models.Event{
		ID:          id,
		Title:       "Test Event",
		OrganizerID: organizerID,
		StartTime:   time.Now().Add(24 * time.Hour),
		EndTime:     time.Now().Add(28 * time.Hour),
	}
}

func TestCheckout_Success(t *testing.T) {
	cart := &MockCartStore{lines: []*models.CartLine{
		{TicketTypeID: 1, Quantity: 2, UnitPrice: 2000}, // stale snapshot below list price
		{TicketTypeID: 2, Quantity: 1, UnitPrice: 5000},
	}}
	inventory := NewMockInventoryStore(
		&models.TicketType{ID: 1, EventID: 10, Label: "GA", Price: 2500, QuantityTotal: 10, QuantityLeft: 10},
		&models.TicketType{ID: 2, EventID: 10, Label: "VIP", Price: 5000, QuantityTotal: 5, QuantityLeft: 5},
	)
	payments := NewMockPaymentStore()
	gateway := &RecordingGateway{}
	f := newCheckoutFixture(t, cart, inventory, NewMockEventStore(upcomingEvent(10, 5)), payments, gateway)

	result, err := f.service.Checkout(context.Background(), 7, 1, "123")
	require.NoError(t, err)

	// The charge uses the cart's price snapshots, not the list price.
	assert.Equal(t, 9000, gateway.authorizedAmount)
	assert.Equal(t, 9000, result.Payment.Amount)
	assert.Len(t, result.Tickets, 3)
	assert.Equal(t, 2, inventory.decrements)
	assert.ElementsMatch(t, []int{1, 2}, cart.deleted)

	// Every line came from one event, so the payment is tagged to it.
	if assert.NotNil(t, result.Payment.EventID) {
		assert.Equal(t, 10, *result.Payment.EventID)
	}
}

func TestCheckout_InsufficientStockAbortsBeforeCharge(t *testing.T) {
	inventory := NewMockInventoryStore(
		&models.TicketType{ID: 1, EventID: 10, Label: "GA", Price: 2500, QuantityTotal: 10, QuantityLeft: 1},
	)
	payments := NewMockPaymentStore()
	gateway := &RecordingGateway{}
	f := newCheckoutFixture(t, &MockCartStore{}, inventory, NewMockEventStore(upcomingEvent(10, 5)), payments, gateway)

	_, err := f.service.CheckoutNow(context.Background(), 7, 1, 2, 1, "123")
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	// The shortfall is caught under lock; the gateway is never called
	// and nothing is written.
	assert.Zero(t, gateway.authorizeCalls)
	assert.Zero(t, inventory.decrements)
	assert.Empty(t, payments.payments)
}

func TestCheckout_SalesClosed(t *testing.T) {
	startedEvent := upcomingEvent(10, 5)
	startedEvent.StartTime = time.Now().Add(-time.Hour)

	inventory := NewMockInventoryStore(
		&models.TicketType{ID: 1, EventID: 10, Label: "GA", Price: 2500, QuantityTotal: 10, QuantityLeft: 10},
	)
	gateway := &RecordingGateway{}
	f := newCheckoutFixture(t, &MockCartStore{}, inventory, NewMockEventStore(startedEvent), NewMockPaymentStore(), gateway)

	_, err := f.service.CheckoutNow(context.Background(), 7, 1, 1, 1, "123")
	assert.ErrorIs(t, err, models.ErrSalesClosed)
	assert.Zero(t, gateway.authorizeCalls)
}

func TestCheckout_DeclineLeavesStateUntouched(t *testing.T) {
	cart := &MockCartStore{lines: []*models.CartLine{
		{TicketTypeID: 1, Quantity: 2, UnitPrice: 2500},
	}}
	inventory := NewMockInventoryStore(
		&models.TicketType{ID: 1, EventID: 10, Label: "GA", Price: 2500, QuantityTotal: 10, QuantityLeft: 10},
	)
	payments := NewMockPaymentStore()
	gateway := &RecordingGateway{
		authorizeErr: &models.DeclinedError{Op: "authorize", Reason: models.DeclineInsufficientFunds},
	}
	f := newCheckoutFixture(t, cart, inventory, NewMockEventStore(upcomingEvent(10, 5)), payments, gateway)

	_, err := f.service.Checkout(context.Background(), 7, 1, "123")
	require.Error(t, err)

	decline, ok := models.IsDeclined(err)
	require.True(t, ok)
	assert.Equal(t, models.DeclineInsufficientFunds, decline.Reason)

	// A decline aborts the whole purchase: no decrement, no payment,
	// no tickets, the cart intact, and no compensation needed.
	assert.Zero(t, inventory.decrements)
	assert.Empty(t, payments.payments)
	assert.Empty(t, payments.tickets)
	assert.Empty(t, cart.deleted)
	assert.Zero(t, gateway.refundCalls)
	assert.Equal(t, 10, inventory.types[1].QuantityLeft)
}

func TestCheckout_CompensatingRefundOnRecordFailure(t *testing.T) {
	cart := &MockCartStore{lines: []*models.CartLine{
		{TicketTypeID: 1, Quantity: 2, UnitPrice: 2500},
	}}
	inventory := NewMockInventoryStore(
		&models.TicketType{ID: 1, EventID: 10, Label: "GA", Price: 2500, QuantityTotal: 10, QuantityLeft: 10},
	)
	payments := NewMockPaymentStore()
	payments.createPaymentErr = errors.New("payments table unavailable")
	gateway := &RecordingGateway{}
	f := newCheckoutFixture(t, cart, inventory, NewMockEventStore(upcomingEvent(10, 5)), payments, gateway)

	_, err := f.service.Checkout(context.Background(), 7, 1, "123")
	require.Error(t, err)

	// The charge was approved but the local write failed, so the
	// gateway must be credited back the full amount.
	assert.Equal(t, 1, gateway.refundCalls)
	assert.Equal(t, 5000, gateway.refundedAmount)
}

func TestCheckoutNow_RejectsNonPositiveQuantity(t *testing.T) {
	service := NewCheckoutService(nil, nil, nil, nil, nil, nil, nil, nil, "USD", 0)

	for _, qty := range []int{0, -1} {
		_, err := service.CheckoutNow(context.Background(), 1, 1, qty, 1, "123")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	}
}

func newRefundFixture(t *testing.T, refundedSoFar int) (*CheckoutService, *MockPaymentStore, *MockInventoryStore, *RecordingGateway) {
	return newRefundFixtureWithDB(t, refundedSoFar, newTestDB(t))
}

func newRefundFixtureWithDB(t *testing.T, refundedSoFar int, db *sql.DB) (*CheckoutService, *MockPaymentStore, *MockInventoryStore, *RecordingGateway) {
	payments := NewMockPaymentStore()
	payments.ticketsByID[50] = &models.Ticket{ID: 50, EventID: 10, UserID: 9, TicketTypeID: 1, Price: 2500, Status: models.TicketActive}
	payments.purchasesByTicket[50] = &models.Purchase{ID: 60, PaymentID: 70, TicketID: 50, Amount: 2500}
	payments.paymentsByID[70] = &models.Payment{ID: 70, UserID: 9, PaymentMethodID: 1, Reference: "PAY-20260101-123456", Amount: 5000}
	payments.refundedSoFar = refundedSoFar

	inventory := NewMockInventoryStore(
		&models.TicketType{ID: 1, EventID: 10, Label: "GA", Price: 2500, QuantityTotal: 10, QuantityLeft: 8},
	)
	gateway := &RecordingGateway{}
	method := &models.PaymentMethod{ID: 1, UserID: 9, GatewayAccountID: "test-account"}

	service := NewCheckoutService(
		db, &MockCartStore{}, inventory, NewMockEventStore(upcomingEvent(10, 5)), payments,
		&MockMethodStore{method: method},
		gateway, NewLogNotifier(), "USD", testGatewayTimeout,
	)
	return service, payments, inventory, gateway
}

func TestRefundTicket_RequiresEventOrganizer(t *testing.T) {
	service, payments, _, gateway := newRefundFixture(t, 0)

	// Caller 6 is not the organizer of event 10; the ticket must be
	// invisible to them.
	_, err := service.RefundTicket(context.Background(), 6, 50)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, gateway.refundCalls)
	assert.Empty(t, payments.refunds)
}

func TestRefundTicket_OrganizerRefund(t *testing.T) {
	service, payments, inventory, gateway := newRefundFixture(t, 0)

	refund, err := service.RefundTicket(context.Background(), 5, 50)
	require.NoError(t, err)

	assert.Equal(t, 2500, refund.Amount)
	assert.Equal(t, 70, refund.PaymentID)
	assert.Equal(t, 2500, gateway.refundedAmount)
	assert.Contains(t, payments.refundedTickets, 50)
	assert.Equal(t, 1, inventory.increments)
	assert.Equal(t, 9, inventory.types[1].QuantityLeft)
}

// logCapture collects log output; notification goroutines may still be
// logging, so writes and reads are serialized.
type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func TestRefundTicket_CommitFailureFlagsGatewayDivergence(t *testing.T) {
	logs := &logCapture{}
	prev := log.Writer()
	log.SetOutput(logs)
	defer log.SetOutput(prev)

	service, _, _, gateway := newRefundFixtureWithDB(t, 0, newCommitFailingDB(t))

	_, err := service.RefundTicket(context.Background(), 5, 50)
	require.Error(t, err)

	// The gateway credit went through before the local write failed,
	// so the divergence must be flagged for reconciliation.
	assert.Equal(t, 1, gateway.refundCalls)
	assert.Contains(t, logs.String(), "local commit failed")
}

func TestRefundTicket_ConservesPaymentTotal(t *testing.T) {
	// 3000 of the 5000 payment is already refunded; another 2500
	// would exceed the charge.
	service, payments, _, gateway := newRefundFixture(t, 3000)

	_, err := service.RefundTicket(context.Background(), 5, 50)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Zero(t, gateway.refundCalls)
	assert.Empty(t, payments.refunds)
}

func TestSingleEventID(t *testing.T) {
	tests := []struct {
		name  string
		lines []*orderLine
		want  *int
	}{
		{name: "no lines", lines: nil, want: nil},
		{name: "all one event", lines: []*orderLine{{eventID: 3}, {eventID: 3}}, want: intPtr(3)},
		{name: "mixed events", lines: []*orderLine{{eventID: 3}, {eventID: 4}}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := singleEventID(tt.lines)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				if assert.NotNil(t, got) {
					assert.Equal(t, *tt.want, *got)
				}
			}
		})
	}
}

func intPtr(v int) *int { return &v }
