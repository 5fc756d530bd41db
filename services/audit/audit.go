// Package audit persists a trail of dispatched notifications.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Audit collection name
const auditCollection = "notification_log"

// Entry is one audit-log record for a dispatched event.
type Entry struct {
	ID          string            `bson:"_id" json:"id"`
	Kind        string            `bson:"kind" json:"kind"`
	Source      string            `bson:"source" json:"source"`
	PayloadSize int               `bson:"payload_size" json:"payload_size"`
	Channels    map[string]string `bson:"channels,omitempty" json:"channels,omitempty"`
	At          time.Time         `bson:"at" json:"at"`
}

// Logger records and reads back audit entries. Implementations must never be
// load-bearing for dispatch; callers treat failures as log-and-continue.
type Logger interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Status() map[string]interface{}
}

// MongoLogger stores audit entries in MongoDB.
type MongoLogger struct {
	client *mongo.Client
	col    *mongo.Collection

	mu        sync.RWMutex
	connected bool
	lastError string
}

// NewMongoLogger connects to MongoDB and prepares the audit collection.
func NewMongoLogger(uri, dbName string) (*MongoLogger, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection with ping
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	l := &MongoLogger{
		client:    client,
		col:       client.Database(dbName).Collection(auditCollection),
		connected: true,
	}
	l.createIndexes()

	log.Info().Str("database", dbName).Msg("MongoDB audit log connected")
	return l, nil
}

func (l *MongoLogger) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "at", Value: -1}},
	})
}

// Record inserts one entry with a bounded timeout.
func (l *MongoLogger) Record(ctx context.Context, entry Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := l.col.InsertOne(ctx, entry)

	l.mu.Lock()
	if err != nil {
		l.lastError = err.Error()
	} else {
		l.lastError = ""
	}
	l.mu.Unlock()
	return err
}

// Recent returns the newest entries, most recent first.
func (l *MongoLogger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := l.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	for cursor.Next(ctx) {
		var e Entry
		if err := cursor.Decode(&e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the MongoDB connection.
func (l *MongoLogger) Close() error {
	if l.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return l.client.Disconnect(ctx)
	}
	return nil
}

// Status returns connection status info
func (l *MongoLogger) Status() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	status := map[string]interface{}{
		"connected": l.connected,
	}
	if l.lastError != "" {
		status["error"] = l.lastError
	}
	return status
}

// NopLogger discards entries. Used when no audit backend is configured.
type NopLogger struct{}

func (NopLogger) Record(ctx context.Context, entry Entry) error {
	return nil
}

func (NopLogger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return nil, nil
}

func (NopLogger) Status() map[string]interface{} {
	return map[string]interface{}{"connected": false}
}
