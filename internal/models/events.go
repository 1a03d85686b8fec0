package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventType string

const (
	EventTypePublic  EventType = "public"
	EventTypePrivate EventType = "private"

	DefaultCurrency = "usd"
)

// ErrNoMatch is returned by conditional writes whose filter matched nothing.
// Callers reload the document to classify the failure.
var ErrNoMatch = errors.New("no document matched the update condition")

type Location struct {
	Address     string    `bson:"address" json:"address" validate:"required"`
	City        string    `bson:"city" json:"city" validate:"required"`
	State       string    `bson:"state" json:"state" validate:"required"`
	ZipCode     string    `bson:"zip_code,omitempty" json:"zip_code,omitempty"`
	Country     string    `bson:"country" json:"country" validate:"required"`
	Coordinates []float64 `bson:"coordinates,omitempty" json:"coordinates,omitempty" validate:"omitempty,len=2"`
}

// String composes the human readable location used in notifications.
func (l Location) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{l.Address, l.City} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	region := strings.TrimSpace(strings.TrimSpace(l.State) + " " + strings.TrimSpace(l.ZipCode))
	if region != "" {
		parts = append(parts, region)
	}
	if strings.TrimSpace(l.Country) != "" {
		parts = append(parts, strings.TrimSpace(l.Country))
	}
	return strings.Join(parts, ", ")
}

type Image struct {
	ImageURL string `bson:"image_url" json:"image_url"`
	FileName string `bson:"file_name" json:"file_name"`
}

type Event struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizerID           primitive.ObjectID `bson:"organizer_id" json:"organizer_id"`
	Title                 string             `bson:"title" json:"title" validate:"required,max=200"`
	Description           string             `bson:"description" json:"description" validate:"required"`
	Date                  time.Time          `bson:"date" json:"date" validate:"required"`
	StartTime             time.Time          `bson:"start_time" json:"start_time" validate:"required"`
	EndTime               time.Time          `bson:"end_time" json:"end_time" validate:"required,gtfield=StartTime"`
	Location              Location           `bson:"location" json:"location"`
	Category              string             `bson:"category" json:"category" validate:"required"`
	Price                 *float64           `bson:"price" json:"price" validate:"omitempty,gte=0"`
	Currency              string             `bson:"currency" json:"currency"`
	Image                 *Image             `bson:"image,omitempty" json:"image,omitempty"`
	TotalTickets          int                `bson:"total_tickets" json:"total_tickets" validate:"required,gt=0"`
	AvailableTickets      int                `bson:"available_tickets" json:"available_tickets"`
	EventType             EventType          `bson:"event_type" json:"event_type" validate:"omitempty,oneof=public private"`
	PrivateEventAttendees []string           `bson:"private_event_attendees" json:"private_event_attendees,omitempty"`
	IsCancelled           bool               `bson:"is_cancelled" json:"is_cancelled"`
	IsFeatured            bool               `bson:"is_featured" json:"is_featured"`
	CreatedAt             time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updated_at"`
}

func (e *Event) IsFree() bool {
	return e.Price == nil || *e.Price <= 0
}

func (e *Event) BeforeCreate() {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.EventType == "" {
		e.EventType = EventTypePublic
	}
	if e.EventType != EventTypePrivate {
		e.PrivateEventAttendees = []string{}
	}
	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	if e.Price != nil && *e.Price <= 0 {
		e.Price = nil
	}
	e.AvailableTickets = e.TotalTickets
	e.IsCancelled = false
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
}

// CanReserve classifies why a reservation against this event cannot succeed.
func (e *Event) CanReserve() error {
	if e.IsCancelled {
		return ErrEventCancelled
	}
	if e.AvailableTickets <= 0 {
		return ErrSoldOut
	}
	return nil
}

type EventUpdate struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Location    *Location  `json:"location"`
	Category    *string    `json:"category"`
	Image       *Image     `json:"-"`
	IsFeatured  *bool      `json:"is_featured"`
}

// SetFields returns the $set document for the non-nil fields.
func (u EventUpdate) SetFields() bson.M {
	set := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Date != nil {
		set["date"] = *u.Date
	}
	if u.StartTime != nil {
		set["start_time"] = *u.StartTime
	}
	if u.EndTime != nil {
		set["end_time"] = *u.EndTime
	}
	if u.Location != nil {
		set["location"] = *u.Location
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Image != nil {
		set["image"] = u.Image
	}
	if u.IsFeatured != nil {
		set["is_featured"] = *u.IsFeatured
	}
	return set
}

// Apply copies the non-nil fields onto e.
func (u EventUpdate) Apply(e *Event) {
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.StartTime != nil {
		e.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		e.EndTime = *u.EndTime
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.Image != nil {
		e.Image = u.Image
	}
	if u.IsFeatured != nil {
		e.IsFeatured = *u.IsFeatured
	}
}

func (u EventUpdate) Validate(current *Event) error {
	if err := Validate.Struct(u); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Location != nil {
		if err := Validate.Struct(u.Location); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	start, end := current.StartTime, current.EndTime
	if u.StartTime != nil {
		start = *u.StartTime
	}
	if u.EndTime != nil {
		end = *u.EndTime
	}
	if !end.After(start) {
		return Invalid("end_time must be after start_time")
	}
	return nil
}

const (
	EventWhenUpcoming = "upcoming"
	EventWhenPast     = "past"
)

type EventFilter struct {
	Category         string
	When             string
	OrganizerID      *primitive.ObjectID
	IncludeCancelled bool
	Page             int
	Limit            int
}

type EventRepo interface {
	// CreateEvent inserts the event and promotes its organizer in one transaction.
	CreateEvent(ctx context.Context, event *Event) (*Event, error)
	GetEventByID(ctx context.Context, id primitive.ObjectID) (*Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]*Event, int64, error)
	UpdateEvent(ctx context.Context, id primitive.ObjectID, update EventUpdate) (*Event, error)
	CancelEvent(ctx context.Context, id primitive.ObjectID) (*Event, error)
	DeleteEvent(ctx context.Context, id primitive.ObjectID) error
	// ReserveSeat decrements available_tickets if the event is open and not sold out.
	ReserveSeat(ctx context.Context, id primitive.ObjectID) (*Event, error)
	// ReleaseSeat increments available_tickets, never above total_tickets.
	ReleaseSeat(ctx context.Context, id primitive.ObjectID) error
}
