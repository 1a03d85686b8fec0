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

func (mdb *MongodbRepo) CreatePayment(ctx context.Context, payment *Payment) error {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	if _, err := col.InsertOne(ctx, payment); err != nil {
		return fmt.Errorf("error inserting payment: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetPaymentByID(ctx context.Context, id primitive.ObjectID) (*Payment, error) {
	return mdb.findPayment(ctx, bson.M{"_id": id})
}

func (mdb *MongodbRepo) FindPaymentByCorrelation(ctx context.Context, key string) (*Payment, error) {
	return mdb.findPayment(ctx, bson.M{"$or": bson.A{
		bson.M{"transaction_id": key},
		bson.M{"provider_session_id": key},
	}})
}

func (mdb *MongodbRepo) findPayment(ctx context.Context, filter bson.M) (*Payment, error) {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var payment Payment
	if err := col.FindOne(ctx, filter).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return &payment, nil
}

func (mdb *MongodbRepo) UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, status string) (*Payment, error) {
	filter := bson.M{
		"_id":            id,
		"payment_status": bson.M{"$ne": PaymentStatusCompleted},
	}
	update := bson.M{"$set": bson.M{"payment_status": status, "updated_at": time.Now().UTC()}}
	return mdb.updatePayment(ctx, filter, update)
}

func (mdb *MongodbRepo) ClaimIssuance(ctx context.Context, id primitive.ObjectID, now, staleBefore time.Time) (*Payment, error) {
	filter := bson.M{
		"_id":                     id,
		"ticket_id":               nil,
		"reconciliation_required": bson.M{"$ne": true},
		"$or": bson.A{
			bson.M{"issuing_at": nil},
			bson.M{"issuing_at": bson.M{"$lt": staleBefore}},
		},
	}
	update := bson.M{"$set": bson.M{
		"payment_status": PaymentStatusCompleted,
		"issuing_at":     now,
		"updated_at":     now,
	}}
	return mdb.updatePayment(ctx, filter, update)
}

func (mdb *MongodbRepo) LinkTicket(ctx context.Context, id, ticketID primitive.ObjectID) (*Payment, error) {
	filter := bson.M{"_id": id, "ticket_id": nil}
	update := bson.M{"$set": bson.M{
		"ticket_id":  ticketID,
		"issuing_at": nil,
		"updated_at": time.Now().UTC(),
	}}
	return mdb.updatePayment(ctx, filter, update)
}

func (mdb *MongodbRepo) ReleaseClaim(ctx context.Context, id primitive.ObjectID) error {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	_, err = col.UpdateOne(ctx,
		bson.M{"_id": id, "ticket_id": nil},
		bson.M{"$set": bson.M{"issuing_at": nil, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error releasing issuance claim: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) MarkSeatReserved(ctx context.Context, id primitive.ObjectID, reserved bool) error {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": id, "ticket_id": nil},
		bson.M{"$set": bson.M{"seat_reserved": reserved, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error recording seat reservation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

func (mdb *MongodbRepo) FlagReconciliation(ctx context.Context, id primitive.ObjectID, reason string) (*Payment, error) {
	update := bson.M{"$set": bson.M{
		"payment_status":          PaymentStatusCompleted,
		"reconciliation_required": true,
		"reconciliation_reason":   reason,
		"issuing_at":              nil,
		"updated_at":              time.Now().UTC(),
	}}
	return mdb.updatePayment(ctx, bson.M{"_id": id, "ticket_id": nil}, update)
}

func (mdb *MongodbRepo) updatePayment(ctx context.Context, filter, update bson.M) (*Payment, error) {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var payment Payment
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("error updating payment: %w", err)
	}
	return &payment, nil
}

func (mdb *MongodbRepo) ListReconciliation(ctx context.Context, page, limit int) ([]*Payment, int64, error) {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting collection: %w", err)
	}

	query := bson.M{"reconciliation_required": true}
	_, limit, skip := NormalizePage(page, limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error finding payments: %w", err)
	}
	defer cursor.Close(ctx)

	payments := make([]*Payment, 0, limit)
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, 0, fmt.Errorf("error decoding payments: %w", err)
	}

	total, err := col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting payments: %w", err)
	}
	return payments, total, nil
}
