package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (mdb *MongodbRepo) InsertTicket(ctx context.Context, ticket *Ticket) error {
	col, err := mdb.GetCollection(ctx, TicketsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	if _, err := col.InsertOne(ctx, ticket); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyBooked
		}
		return fmt.Errorf("error inserting ticket: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetTicketByID(ctx context.Context, id primitive.ObjectID) (*Ticket, error) {
	return mdb.findTicket(ctx, bson.M{"_id": id})
}

func (mdb *MongodbRepo) FindTicketByPayment(ctx context.Context, paymentID primitive.ObjectID) (*Ticket, error) {
	return mdb.findTicket(ctx, bson.M{"payment_id": paymentID})
}

func (mdb *MongodbRepo) findTicket(ctx context.Context, filter bson.M) (*Ticket, error) {
	col, err := mdb.GetCollection(ctx, TicketsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var ticket Ticket
	if err := col.FindOne(ctx, filter).Decode(&ticket); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("error finding ticket: %w", err)
	}
	return &ticket, nil
}

func (mdb *MongodbRepo) TerminateTicket(ctx context.Context, id, userID primitive.ObjectID, term Termination) (*Ticket, error) {
	set := bson.M{
		"status":      TicketStatusCancelled,
		"ticket_used": true,
		"updated_at":  term.At,
	}
	if term.Refund {
		set["refund_date"] = term.At
		set["refund_reason"] = term.Reason
	}
	filter := bson.M{
		"_id":         id,
		"user_id":     userID,
		"status":      TicketStatusBooked,
		"ticket_used": false,
	}
	return mdb.updateTicket(ctx, filter, bson.M{"$set": set})
}

func (mdb *MongodbRepo) MarkTicketUsed(ctx context.Context, id primitive.ObjectID) (*Ticket, error) {
	filter := bson.M{
		"_id":         id,
		"status":      TicketStatusBooked,
		"ticket_used": false,
	}
	update := bson.M{"$set": bson.M{"ticket_used": true, "updated_at": time.Now().UTC()}}
	return mdb.updateTicket(ctx, filter, update)
}

func (mdb *MongodbRepo) updateTicket(ctx context.Context, filter, update bson.M) (*Ticket, error) {
	col, err := mdb.GetCollection(ctx, TicketsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ticket Ticket
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ticket); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("error updating ticket: %w", err)
	}
	return &ticket, nil
}

func ticketQuery(filter TicketFilter) bson.M {
	query := bson.M{}
	if filter.EventID != nil {
		query["event_id"] = *filter.EventID
	}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}

func (mdb *MongodbRepo) ListTickets(ctx context.Context, filter TicketFilter) ([]*Ticket, int64, error) {
	col, err := mdb.GetCollection(ctx, TicketsColName)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting collection: %w", err)
	}

	query := ticketQuery(filter)
	_, limit, skip := NormalizePage(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error finding tickets: %w", err)
	}
	defer cursor.Close(ctx)

	tickets := make([]*Ticket, 0, limit)
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, 0, fmt.Errorf("error decoding tickets: %w", err)
	}

	total, err := col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting tickets: %w", err)
	}
	return tickets, total, nil
}

func (mdb *MongodbRepo) CountTickets(ctx context.Context, filter TicketFilter) (int64, error) {
	col, err := mdb.GetCollection(ctx, TicketsColName)
	if err != nil {
		return 0, fmt.Errorf("error getting collection: %w", err)
	}

	count, err := col.CountDocuments(ctx, ticketQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("error counting tickets: %w", err)
	}
	return count, nil
}
