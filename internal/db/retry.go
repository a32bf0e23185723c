package db

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsDuplicateKeyError is a function that checks if an error is a duplicate key error.
type IsDuplicateKeyError func(err error) bool

const DefaultMaxRetries = 3

const duplicateKeyCode = 11000

// Try runs an insert that generates a fresh random _id on every attempt,
// retrying only when the generated id collides.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsIDCollision)
}

// WithRetries executes op, retrying up to maxRetries times while isDuplicateKey(err) holds.
func WithRetries(op Operation, maxRetries int, isDuplicateKey IsDuplicateKeyError) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !isDuplicateKey(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	return len(duplicateMessages(err)) > 0
}

// IsIDCollision reports a duplicate key error on the _id index only.
// Violations of other unique indexes are not retryable.
func IsIDCollision(err error) bool {
	return DuplicateKeyIndex(err) == "_id_"
}

// DuplicateKeyIndex returns the name of the unique index a duplicate key
// error was raised on, or "" if err is not a duplicate key error.
func DuplicateKeyIndex(err error) string {
	for _, msg := range duplicateMessages(err) {
		idx := strings.Index(msg, "index: ")
		if idx < 0 {
			continue
		}
		rest := msg[idx+len("index: "):]
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			rest = rest[:end]
		}
		if rest != "" {
			return rest
		}
	}
	return ""
}

func duplicateMessages(err error) []string {
	var msgs []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == duplicateKeyCode {
				msgs = append(msgs, e.Message)
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == duplicateKeyCode {
				msgs = append(msgs, e.Message)
			}
		}
	}
	return msgs
}
