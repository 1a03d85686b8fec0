package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTicket_CanTerminate(t *testing.T) {
	owner := primitive.NewObjectID()
	tests := []struct {
		name   string
		ticket Ticket
		caller primitive.ObjectID
		want   error
	}{
		{"booked and unused", Ticket{UserID: owner, Status: TicketStatusBooked}, owner, nil},
		{"someone else", Ticket{UserID: owner, Status: TicketStatusBooked}, primitive.NewObjectID(), ErrNotOwner},
		{"cancelled", Ticket{UserID: owner, Status: TicketStatusCancelled, TicketUsed: true}, owner, ErrAlreadyCancelled},
		{"used", Ticket{UserID: owner, Status: TicketStatusBooked, TicketUsed: true}, owner, ErrAlreadyUsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ticket.CanTerminate(tt.caller)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTicket_CanCheckIn(t *testing.T) {
	assert.NoError(t, (&Ticket{Status: TicketStatusBooked}).CanCheckIn())
	assert.ErrorIs(t, (&Ticket{Status: TicketStatusBooked, TicketUsed: true}).CanCheckIn(), ErrAlreadyUsed)
	assert.ErrorIs(t, (&Ticket{Status: TicketStatusCancelled, TicketUsed: true}).CanCheckIn(), ErrTicketCancelled)
}

func TestEvent_BeforeCreateAndCanReserve(t *testing.T) {
	zero := 0.0
	e := &Event{TotalTickets: 3, Price: &zero, PrivateEventAttendees: []string{"a@example.com"}}
	e.BeforeCreate()

	assert.False(t, e.ID.IsZero())
	assert.Equal(t, 3, e.AvailableTickets)
	assert.Equal(t, EventTypePublic, e.EventType)
	assert.Empty(t, e.PrivateEventAttendees)
	assert.Equal(t, DefaultCurrency, e.Currency)
	assert.Nil(t, e.Price)
	assert.True(t, e.IsFree())
	assert.NoError(t, e.CanReserve())

	e.AvailableTickets = 0
	assert.ErrorIs(t, e.CanReserve(), ErrSoldOut)
	e.IsCancelled = true
	assert.ErrorIs(t, e.CanReserve(), ErrEventCancelled)
}

func TestEventUpdate_Validate(t *testing.T) {
	start := time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC)
	current := &Event{StartTime: start, EndTime: start.Add(3 * time.Hour)}

	later := start.Add(5 * time.Hour)
	assert.ErrorIs(t, EventUpdate{StartTime: &later}.Validate(current), ErrInvalidInput)

	end := start.Add(6 * time.Hour)
	assert.NoError(t, EventUpdate{StartTime: &later, EndTime: &end}.Validate(current))

	assert.ErrorIs(t, EventUpdate{Location: &Location{City: "Accra"}}.Validate(current), ErrInvalidInput)
}

func TestEventUpdate_SetFieldsOnlyNonNil(t *testing.T) {
	title := "New title"
	set := EventUpdate{Title: &title}.SetFields()
	assert.Equal(t, 1, len(set))
	assert.Equal(t, title, set["title"])
}

func TestLocation_String(t *testing.T) {
	l := Location{Address: " 12 Oxford St ", City: "Accra", State: "Greater Accra", ZipCode: "GA-1", Country: "Ghana"}
	assert.Equal(t, "12 Oxford St, Accra, Greater Accra GA-1, Ghana", l.String())
	assert.Equal(t, "Kumasi", Location{City: "Kumasi"}.String())
}

func TestPromoteOnEventCreation(t *testing.T) {
	assert.Equal(t, RoleOrganizer, PromoteOnEventCreation(RoleAttendee))
	assert.Equal(t, RoleOrganizer, PromoteOnEventCreation(""))
	assert.Equal(t, RoleOrganizer, PromoteOnEventCreation(RoleOrganizer))
	assert.Equal(t, RoleAdmin, PromoteOnEventCreation(RoleAdmin))
}

func TestPayment_BeforeCreateClearsIssuanceState(t *testing.T) {
	ticketID := primitive.NewObjectID()
	now := time.Now()
	p := &Payment{TicketID: &ticketID, IssuingAt: &now}
	p.BeforeCreate()

	assert.False(t, p.ID.IsZero())
	assert.Equal(t, PaymentStatusPending, p.PaymentStatus)
	assert.Nil(t, p.TicketID)
	assert.Nil(t, p.IssuingAt)
	assert.True(t, IsPaymentStatus(PaymentStatusFailed))
	assert.False(t, IsPaymentStatus("refunded"))
}

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream("stripe create session", cause)
	assert.ErrorIs(t, err, ErrUpstreamFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUpstreamFailure, KindOf(err))

	invalid := Invalid("limit must be positive")
	appErr, ok := AsAppError(invalid)
	require.True(t, ok)
	assert.Equal(t, "invalid_input", appErr.Code)
	assert.Contains(t, invalid.Error(), "limit must be positive")

	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.Equal(t, "invalid_event", ErrPaidEvent.Code)
}

func TestNormalizePage(t *testing.T) {
	page, limit, skip := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Equal(t, int64(0), skip)

	page, limit, skip = NormalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxPageLimit, limit)
	assert.Equal(t, int64(200), skip)
}
