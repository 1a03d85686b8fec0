package models

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Validate = validator.New()

const (
	DefaultDBName   = "eventify"
	UsersColName    = "users"
	EventsColName   = "events"
	TicketsColName  = "tickets"
	PaymentsColName = "payments"
)

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	if dbName == "" {
		dbName = DefaultDBName
	}
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the unique and partial indexes the booking invariants rely on.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		UsersColName: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("username_unique"),
			},
			{
				Keys:    bson.D{{Key: "auth_subject", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("auth_subject_unique"),
			},
		},
		EventsColName: {
			{
				Keys:    bson.D{{Key: "organizer_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("organizer_created_idx"),
			},
			{
				Keys:    bson.D{{Key: "category", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetName("category_date_idx"),
			},
		},
		TicketsColName: {
			// one booked ticket per (event, user); cancelled tickets fall out of the index
			{
				Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": TicketStatusBooked}).
					SetName("event_user_booked_unique"),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("user_created_idx"),
			},
			{
				Keys:    bson.D{{Key: "payment_id", Value: 1}},
				Options: options.Index().SetSparse(true).SetName("payment_idx"),
			},
		},
		PaymentsColName: {
			{
				Keys:    bson.D{{Key: "transaction_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("transaction_id_unique"),
			},
			{
				Keys: bson.D{{Key: "provider_session_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"provider_session_id": bson.M{"$type": "string"}}).
					SetName("provider_session_unique"),
			},
			{
				Keys:    bson.D{{Key: "reconciliation_required", Value: 1}},
				Options: options.Index().SetName("reconciliation_idx"),
			},
		},
	}

	for colName, indexes := range specs {
		col, err := mdb.GetCollection(ctx, colName)
		if err != nil {
			return fmt.Errorf("error getting collection: %w", err)
		}
		if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("error creating %s indexes: %w", colName, err)
		}
	}
	return nil
}
