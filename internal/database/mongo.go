package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	bookingsCollection  = "bookings"
	customersCollection = "customers"
)

// MongoStore keeps bookings and customers in MongoDB collections.
type MongoStore struct {
	client    *mongo.Client
	bookings  *mongo.Collection
	customers *mongo.Collection
	logger    *zerolog.Logger
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, uri, dbName string, timeout time.Duration, logger *zerolog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:    client,
		bookings:  db.Collection(bookingsCollection),
		customers: db.Collection(customersCollection),
		logger:    logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Info().Str("database", dbName).Msg("Mongo store initialized")
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	bookingIdx := []mongo.IndexModel{
		{
			Keys:    bson.M{"booking_id": 1},
			Options: options.Index().SetUnique(true).SetName("unique_booking_id"),
		},
		{
			Keys: bson.D{
				{Key: "booking_date", Value: 1},
				{Key: "booking_time", Value: 1},
			},
			Options: options.Index().SetName("booking_date_time"),
		},
		{
			Keys:    bson.M{"phone": 1},
			Options: options.Index().SetName("booking_phone"),
		},
	}
	if _, err := s.bookings.Indexes().CreateMany(ctx, bookingIdx); err != nil {
		return err
	}

	customerIdx := mongo.IndexModel{
		Keys:    bson.M{"phone": 1},
		Options: options.Index().SetUnique(true).SetName("unique_phone"),
	}
	_, err := s.customers.Indexes().CreateOne(ctx, customerIdx)
	return err
}

func (s *MongoStore) BookingsOnDate(ctx context.Context, date time.Time) ([]models.Booking, error) {
	start, end := dayBounds(date)
	filter := bson.M{"booking_date": bson.M{"$gte": start, "$lt": end}}
	opts := options.Find().SetSort(bson.D{{Key: "booking_time", Value: 1}})
	return s.find(ctx, filter, opts)
}

func (s *MongoStore) BookingsByPhone(ctx context.Context, phone string) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "booking_date", Value: -1},
		{Key: "booking_time", Value: -1},
	})
	return s.find(ctx, bson.M{"phone": phone}, opts)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	cursor, err := s.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.ModifiedAt = now

	if _, err := s.bookings.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("insert booking %s: %w", b.ID, err)
	}
	s.logger.Debug().Str("booking_id", b.ID).Msg("Booking saved")
	return nil
}

func (s *MongoStore) UpsertCustomer(ctx context.Context, c models.Customer) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":      c.Name,
			"last_seen": now,
		},
		"$inc":         bson.M{"reservation_count": 1},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := s.customers.UpdateOne(ctx, bson.M{"phone": c.Phone}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (s *MongoStore) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.Booking, error) {
	var current models.Booking
	err := s.bookings.FindOne(ctx, bson.M{"booking_id": id}).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	now := time.Now().UTC()
	res, err := s.bookings.UpdateOne(ctx,
		bson.M{"booking_id": id, "status": current.Status},
		bson.M{"$set": bson.M{"status": status, "modified_at": now}},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrConcurrentModification
	}

	current.Status = status
	current.ModifiedAt = now
	return &current, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
