package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrLockTimeout is returned when a lock could not be acquired before the context ended.
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Unlock releases a lock obtained from a Locker.
type Unlock func()

// Locker serialises work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// lockDocument is an advisory lock held in MongoDB. The _id is the locked key,
// so a second holder fails with a duplicate key error.
type lockDocument struct {
	Key       string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoLocker implements Locker with one document per held key.
// Locks expire after ttl so a crashed holder cannot block a key forever.
type MongoLocker struct {
	collection *mongo.Collection
	ttl        time.Duration
	backoff    Backoff
}

// Backoff returns how long to wait before the given retry attempt.
type Backoff func(attempt int) time.Duration

// DefaultBackoff grows linearly from 20ms and caps at 250ms.
func DefaultBackoff(attempt int) time.Duration {
	d := time.Duration(20*(attempt+1)) * time.Millisecond
	if d > 250*time.Millisecond {
		d = 250 * time.Millisecond
	}
	return d
}

// NewMongoLocker creates a MongoLocker on the booking_locks collection.
func NewMongoLocker(database *mongo.Database, ttl time.Duration) *MongoLocker {
	return &MongoLocker{
		collection: database.Collection(BookingLocksCollection),
		ttl:        ttl,
		backoff:    DefaultBackoff,
	}
}

// Lock blocks until key is acquired or ctx is done.
func (l *MongoLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	owner := uuid.NewString()
	for attempt := 0; ; attempt++ {
		now := time.Now().UTC()
		_, err := l.collection.InsertOne(ctx, lockDocument{
			Key:       key,
			Owner:     owner,
			ExpiresAt: now.Add(l.ttl),
			CreatedAt: now,
		})
		if err == nil {
			return l.unlockFunc(key, owner), nil
		}
		if !IsMongoDuplicateKeyError(err) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w %s: %v", ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		// The TTL monitor only runs once a minute; take over expired locks directly.
		res, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}})
		if err == nil && res.DeletedCount > 0 {
			log.Printf("Took over expired lock %s", key)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-time.After(l.backoff(attempt)):
		}
	}
}

func (l *MongoLocker) unlockFunc(key, owner string) Unlock {
	return func() {
		// Release even if the request context is already canceled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner}); err != nil {
			log.Printf("Error releasing lock %s: %v", key, err)
		}
	}
}
