package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshua-takyi/eventify/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// reserveAttempts bounds the retries when a conditional decrement misses
// but the reloaded event still looks reservable.
const reserveAttempts = 3

// InventoryLedger is the only writer of events.available_tickets.
type InventoryLedger struct {
	events models.EventRepo
	logger *slog.Logger
}

func NewInventoryLedger(events models.EventRepo, logger *slog.Logger) *InventoryLedger {
	return &InventoryLedger{
		events: events,
		logger: logger,
	}
}

// Reserve takes one seat. It fails with ErrEventNotFound, ErrEventCancelled or ErrSoldOut.
func (l *InventoryLedger) Reserve(ctx context.Context, eventID primitive.ObjectID) (*models.Event, error) {
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		event, err := l.events.ReserveSeat(ctx, eventID)
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, models.ErrNoMatch) {
			return nil, fmt.Errorf("failed to reserve seat: %w", err)
		}

		current, err := l.events.GetEventByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if err := current.CanReserve(); err != nil {
			return nil, err
		}
	}
	return nil, models.ErrSoldOut
}

// Release gives one seat back. A release against a full event is a no-op.
func (l *InventoryLedger) Release(ctx context.Context, eventID primitive.ObjectID) error {
	err := l.events.ReleaseSeat(ctx, eventID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNoMatch) {
		return fmt.Errorf("failed to release seat: %w", err)
	}

	if _, err := l.events.GetEventByID(ctx, eventID); err != nil {
		return err
	}
	l.logger.Warn("Seat release ignored, event already at capacity", "event_id", eventID.Hex())
	return nil
}
