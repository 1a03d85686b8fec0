package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshua-takyi/eventify/internal/gateway"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/monitoring"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory stand-in for MongodbRepo. Conditional writes follow
// the same filters as the Mongo implementation under a single mutex.
type memStore struct {
	mu       sync.Mutex
	events   map[primitive.ObjectID]*models.Event
	tickets  map[primitive.ObjectID]*models.Ticket
	payments map[primitive.ObjectID]*models.Payment
	users    map[primitive.ObjectID]*models.User

	insertTicketErr error
	afterReserve    func(*models.Event)
	reserveCalls    int
	releaseCalls    int
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[primitive.ObjectID]*models.Event{},
		tickets:  map[primitive.ObjectID]*models.Ticket{},
		payments: map[primitive.ObjectID]*models.Payment{},
		users:    map[primitive.ObjectID]*models.User{},
	}
}

func copyEvent(e *models.Event) *models.Event { c := *e; return &c }
func copyTicket(t *models.Ticket) *models.Ticket { c := *t; return &c }
func copyPayment(p *models.Payment) *models.Payment { c := *p; return &c }
func copyUser(u *models.User) *models.User { c := *u; return &c }

// events

func (m *memStore) CreateEvent(_ context.Context, event *models.Event) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	organizer, ok := m.users[event.OrganizerID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	m.events[event.ID] = copyEvent(event)
	organizer.Role = models.PromoteOnEventCreation(organizer.Role)
	return copyEvent(event), nil
}

func (m *memStore) GetEventByID(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (m *memStore) ListEvents(_ context.Context, filter models.EventFilter) ([]*models.Event, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Event
	for _, e := range m.events {
		if filter.OrganizerID != nil && e.OrganizerID != *filter.OrganizerID {
			continue
		}
		if filter.OrganizerID == nil && e.EventType == models.EventTypePrivate {
			continue
		}
		if !filter.IncludeCancelled && e.IsCancelled {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		out = append(out, copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, int64(len(out)), nil
}

func (m *memStore) UpdateEvent(_ context.Context, id primitive.ObjectID, update models.EventUpdate) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	update.Apply(e)
	return copyEvent(e), nil
}

func (m *memStore) CancelEvent(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.IsCancelled {
		return nil, models.ErrNoMatch
	}
	e.IsCancelled = true
	return copyEvent(e), nil
}

func (m *memStore) DeleteEvent(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return models.ErrEventNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memStore) ReserveSeat(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveCalls++
	e, ok := m.events[id]
	if !ok || e.IsCancelled || e.AvailableTickets <= 0 {
		return nil, models.ErrNoMatch
	}
	e.AvailableTickets--
	reserved := copyEvent(e)
	if m.afterReserve != nil {
		m.afterReserve(e)
	}
	return reserved, nil
}

func (m *memStore) ReleaseSeat(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls++
	e, ok := m.events[id]
	if !ok || e.AvailableTickets >= e.TotalTickets {
		return models.ErrNoMatch
	}
	e.AvailableTickets++
	return nil
}

// tickets

func (m *memStore) InsertTicket(_ context.Context, ticket *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertTicketErr != nil {
		return m.insertTicketErr
	}
	for _, t := range m.tickets {
		if t.EventID == ticket.EventID && t.UserID == ticket.UserID && t.Status == models.TicketStatusBooked {
			return models.ErrAlreadyBooked
		}
	}
	m.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (m *memStore) GetTicketByID(_ context.Context, id primitive.ObjectID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, models.ErrTicketNotFound
	}
	return copyTicket(t), nil
}

func (m *memStore) FindTicketByPayment(_ context.Context, paymentID primitive.ObjectID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.PaymentID != nil && *t.PaymentID == paymentID {
			return copyTicket(t), nil
		}
	}
	return nil, models.ErrTicketNotFound
}

func (m *memStore) TerminateTicket(_ context.Context, id, userID primitive.ObjectID, term models.Termination) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.UserID != userID || t.Status != models.TicketStatusBooked || t.TicketUsed {
		return nil, models.ErrNoMatch
	}
	t.Status = models.TicketStatusCancelled
	t.TicketUsed = true
	if term.Refund {
		at, reason := term.At, term.Reason
		t.RefundDate = &at
		t.RefundReason = &reason
	}
	return copyTicket(t), nil
}

func (m *memStore) MarkTicketUsed(_ context.Context, id primitive.ObjectID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.Status != models.TicketStatusBooked || t.TicketUsed {
		return nil, models.ErrNoMatch
	}
	t.TicketUsed = true
	return copyTicket(t), nil
}

func (m *memStore) matchTickets(filter models.TicketFilter) []*models.Ticket {
	var out []*models.Ticket
	for _, t := range m.tickets {
		if filter.EventID != nil && t.EventID != *filter.EventID {
			continue
		}
		if filter.UserID != nil && t.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, copyTicket(t))
	}
	return out
}

func (m *memStore) ListTickets(_ context.Context, filter models.TicketFilter) ([]*models.Ticket, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.matchTickets(filter)
	return out, int64(len(out)), nil
}

func (m *memStore) CountTickets(_ context.Context, filter models.TicketFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matchTickets(filter))), nil
}

func (m *memStore) bookedTickets(eventID primitive.ObjectID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickets {
		if t.EventID == eventID && t.Status == models.TicketStatusBooked {
			n++
		}
	}
	return n
}

// payments

func (m *memStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TransactionID == payment.TransactionID {
			return errors.New("duplicate transaction id")
		}
	}
	m.payments[payment.ID] = copyPayment(payment)
	return nil
}

func (m *memStore) GetPaymentByID(_ context.Context, id primitive.ObjectID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (m *memStore) FindPaymentByCorrelation(_ context.Context, key string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TransactionID == key || (p.ProviderSessionID != nil && *p.ProviderSessionID == key) {
			return copyPayment(p), nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (m *memStore) UpdatePaymentStatus(_ context.Context, id primitive.ObjectID, status string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.PaymentStatus == models.PaymentStatusCompleted {
		return nil, models.ErrNoMatch
	}
	p.PaymentStatus = status
	return copyPayment(p), nil
}

func (m *memStore) ClaimIssuance(_ context.Context, id primitive.ObjectID, now, staleBefore time.Time) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.TicketID != nil || p.ReconciliationRequired {
		return nil, models.ErrNoMatch
	}
	if p.IssuingAt != nil && !p.IssuingAt.Before(staleBefore) {
		return nil, models.ErrNoMatch
	}
	p.PaymentStatus = models.PaymentStatusCompleted
	p.IssuingAt = &now
	return copyPayment(p), nil
}

func (m *memStore) LinkTicket(_ context.Context, id, ticketID primitive.ObjectID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.TicketID != nil {
		return nil, models.ErrNoMatch
	}
	p.TicketID = &ticketID
	p.IssuingAt = nil
	return copyPayment(p), nil
}

func (m *memStore) ReleaseClaim(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		p.IssuingAt = nil
	}
	return nil
}

func (m *memStore) MarkSeatReserved(_ context.Context, id primitive.ObjectID, reserved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.TicketID != nil {
		return models.ErrNoMatch
	}
	p.SeatReserved = reserved
	return nil
}

func (m *memStore) FlagReconciliation(_ context.Context, id primitive.ObjectID, reason string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.TicketID != nil {
		return nil, models.ErrNoMatch
	}
	p.ReconciliationRequired = true
	p.ReconciliationReason = reason
	p.IssuingAt = nil
	return copyPayment(p), nil
}

func (m *memStore) ListReconciliation(_ context.Context, _, _ int) ([]*models.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payment
	for _, p := range m.payments {
		if p.ReconciliationRequired {
			out = append(out, copyPayment(p))
		}
	}
	return out, int64(len(out)), nil
}

// users

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username || (user.AuthSubject != "" && u.AuthSubject == user.AuthSubject) {
			return models.ErrUserExists
		}
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *memStore) findUser(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.ID == id })
}

func (m *memStore) GetUserBySubject(_ context.Context, subject string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.AuthSubject == subject })
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.findUser(func(u *models.User) bool { return u.Email == email })
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.Username == username })
}

func (m *memStore) UpsertFederatedUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.BeforeCreate()
	if existing, err := m.GetUserByEmail(ctx, user.Email); err == nil {
		return existing, nil
	}
	if err := m.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return copyUser(user), nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, id primitive.ObjectID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) UpdateProfileImage(_ context.Context, id primitive.ObjectID, image *models.Image) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	u.ProfileImage = image
	return copyUser(u), nil
}

// fixtures

func (m *memStore) addUser(role models.Role) *models.User {
	id := primitive.NewObjectID()
	u := &models.User{
		ID:          id,
		AuthSubject: id.Hex(),
		Email:       id.Hex() + "@example.com",
		Username:    "u" + id.Hex()[16:],
		Name:        "Kofi Mensah",
		Role:        role,
		Provider:    models.ProviderLocal,
	}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return copyUser(u)
}

func (m *memStore) addEvent(organizerID primitive.ObjectID, seats int, price float64) *models.Event {
	start := time.Now().UTC().Add(72 * time.Hour)
	e := &models.Event{
		OrganizerID:  organizerID,
		Title:        "Chale Wote Street Art Festival",
		Description:  "Street art, music and performance in Jamestown.",
		Date:         start,
		StartTime:    start,
		EndTime:      start.Add(4 * time.Hour),
		Location:     models.Location{Address: "High St", City: "Accra", State: "Greater Accra", Country: "Ghana"},
		Category:     "festival",
		TotalTickets: seats,
	}
	if price > 0 {
		e.Price = &price
	}
	e.BeforeCreate()
	m.mu.Lock()
	m.events[e.ID] = e
	m.mu.Unlock()
	return copyEvent(e)
}

func (m *memStore) event(id primitive.ObjectID) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyEvent(m.events[id])
}

func (m *memStore) payment(id primitive.ObjectID) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyPayment(m.payments[id])
}

// collaborators

type recordingNotifier struct {
	mu      sync.Mutex
	warning string
	calls   int
}

func (n *recordingNotifier) NotifyBooked(context.Context, *models.Ticket, *models.Event, *models.User) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.warning
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// fakeGateway settles whatever status is queued for a correlation id.
type fakeGateway struct {
	provider    string
	checkoutErr error
	sessionID   string
	settlement  *gateway.Settlement
	settleErr   error
	settleCalls int
}

func (g *fakeGateway) Provider() string { return g.provider }

func (g *fakeGateway) CreateCheckout(_ context.Context, req *gateway.CheckoutRequest) (*gateway.Checkout, error) {
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	return &gateway.Checkout{
		RedirectURL: "https://pay.example.com/" + req.TransactionID,
		SessionID:   g.sessionID,
	}, nil
}

func (g *fakeGateway) Settle(context.Context, gateway.Report) (*gateway.Settlement, error) {
	g.settleCalls++
	if g.settleErr != nil {
		return nil, g.settleErr
	}
	return g.settlement, nil
}

type memBlobStore struct {
	mu      sync.Mutex
	stored  []string
	deleted []string
	err     error
}

func (s *memBlobStore) Store(_ context.Context, folder string, r io.Reader) (*models.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := folder + "/" + primitive.NewObjectID().Hex()
	s.stored = append(s.stored, name)
	return &models.Image{ImageURL: "https://res.cloudinary.com/demo/" + name, FileName: name}, nil
}

func (s *memBlobStore) Delete(_ context.Context, image *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, image.FileName)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	store    *memStore
	ledger   *InventoryLedger
	registry *TicketRegistry
	payments *PaymentService
	booking  *BookingService
	notifier *recordingNotifier
	gateway  *fakeGateway
}

func newHarness() *harness {
	logger := discardLogger()
	monitor := monitoring.NewMonitor(logger)
	store := newMemStore()
	gw := &fakeGateway{provider: models.PaymentMethodStripe, sessionID: "cs_test_" + primitive.NewObjectID().Hex()}
	notifier := &recordingNotifier{}

	ledger := NewInventoryLedger(store, logger)
	registry := NewTicketRegistry(store, store, ledger, "https://eventify.com/attendance/verify/", logger)
	payments := NewPaymentService(store, store, store, ledger, registry, gateway.NewRegistry(gw), monitor, logger, PaymentConfig{
		GatewayTimeout: time.Second,
		ClaimTTL:       time.Minute,
	})
	booking := NewBookingService(ledger, registry, payments, store, store, notifier, monitor, logger)

	return &harness{
		store:    store,
		ledger:   ledger,
		registry: registry,
		payments: payments,
		booking:  booking,
		notifier: notifier,
		gateway:  gw,
	}
}
