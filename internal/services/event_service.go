package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/joshua-takyi/eventify/internal/models"
	"github.com/joshua-takyi/eventify/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventService struct {
	events models.EventRepo
	store  storage.BlobStore
	logger *slog.Logger
}

// NewEventService builds the service. store may be nil, in which case image uploads are refused.
func NewEventService(events models.EventRepo, store storage.BlobStore, logger *slog.Logger) *EventService {
	return &EventService{
		events: events,
		store:  store,
		logger: logger,
	}
}

// CreateEvent stores the image first, then inserts the event. The organizer is
// promoted in the same transaction as the insert.
func (es *EventService) CreateEvent(ctx context.Context, organizer *models.User, event *models.Event, image io.Reader) (*models.Event, error) {
	event.OrganizerID = organizer.ID
	event.Title = helpers.StringTrim(event.Title)
	event.Currency = strings.ToLower(helpers.StringTrim(event.Currency))

	if err := models.Validate.Struct(event); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if err := models.Validate.Struct(event.Location); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	if image != nil {
		uploaded, err := es.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		event.Image = uploaded
	}

	event.BeforeCreate()
	created, err := es.events.CreateEvent(ctx, event)
	if err != nil {
		es.discard(ctx, event.Image)
		return nil, err
	}

	es.logger.Info("Event created", "event_id", created.ID.Hex(), "organizer_id", organizer.ID.Hex())
	return created, nil
}

func (es *EventService) GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	return es.events.GetEventByID(ctx, id)
}

func (es *EventService) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, int64, error) {
	if filter.When != "" && filter.When != models.EventWhenUpcoming && filter.When != models.EventWhenPast {
		return nil, 0, models.Invalid("when must be upcoming or past")
	}
	return es.events.ListEvents(ctx, filter)
}

// ListByOrganizer includes cancelled events when the organizer is the viewer.
func (es *EventService) ListByOrganizer(ctx context.Context, organizerID primitive.ObjectID, viewer Viewer, page, limit int) ([]*models.Event, int64, error) {
	return es.events.ListEvents(ctx, models.EventFilter{
		OrganizerID:      &organizerID,
		IncludeCancelled: viewer.IsAdmin || viewer.UserID == organizerID,
		Page:             page,
		Limit:            limit,
	})
}

// UpdateEvent changes descriptive fields. Capacity and price are fixed once tickets can exist.
func (es *EventService) UpdateEvent(ctx context.Context, id primitive.ObjectID, viewer Viewer, update models.EventUpdate, image io.Reader) (*models.Event, error) {
	current, err := es.owned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if err := update.Validate(current); err != nil {
		return nil, err
	}

	if image != nil {
		uploaded, err := es.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		update.Image = uploaded
	}

	updated, err := es.events.UpdateEvent(ctx, id, update)
	if err != nil {
		es.discard(ctx, update.Image)
		return nil, err
	}
	if update.Image != nil {
		es.discard(ctx, current.Image)
	}
	return updated, nil
}

// CancelEvent soft-cancels the event; no further reservations succeed.
func (es *EventService) CancelEvent(ctx context.Context, id primitive.ObjectID, viewer Viewer) (*models.Event, error) {
	current, err := es.owned(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if current.IsCancelled {
		return nil, models.ErrEventCancelled
	}

	cancelled, err := es.events.CancelEvent(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNoMatch) {
			return nil, models.ErrEventCancelled
		}
		return nil, err
	}
	es.logger.Info("Event cancelled", "event_id", id.Hex())
	return cancelled, nil
}

func (es *EventService) DeleteEvent(ctx context.Context, id primitive.ObjectID, viewer Viewer) error {
	current, err := es.owned(ctx, id, viewer)
	if err != nil {
		return err
	}
	if err := es.events.DeleteEvent(ctx, id); err != nil {
		return err
	}
	es.discard(ctx, current.Image)
	es.logger.Info("Event deleted", "event_id", id.Hex())
	return nil
}

func (es *EventService) owned(ctx context.Context, id primitive.ObjectID, viewer Viewer) (*models.Event, error) {
	event, err := es.events.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin && event.OrganizerID != viewer.UserID {
		return nil, models.ErrNotOwner
	}
	return event, nil
}

func (es *EventService) upload(ctx context.Context, image io.Reader) (*models.Image, error) {
	if es.store == nil {
		return nil, models.Upstream("upload image", fmt.Errorf("image storage is not configured"))
	}
	return es.store.Store(ctx, helpers.EventsFolder, image)
}

// discard removes an image blob. Failures leave an orphan and are only logged.
func (es *EventService) discard(ctx context.Context, image *models.Image) {
	if es.store == nil || image == nil {
		return
	}
	if err := es.store.Delete(context.WithoutCancel(ctx), image); err != nil {
		es.logger.Warn("Failed to delete image", "file_name", image.FileName, "error", err)
	}
}
