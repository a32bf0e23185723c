package services

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/rentals/internal/db"
	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

// memoryBookingStore is an in-memory BookingStore and ConfirmedBookingFinder.
type memoryBookingStore struct {
	mu       sync.Mutex
	bookings map[utils.SixID]*models.Booking
	writes   int
}

func newMemoryBookingStore(bookings ...models.Booking) *memoryBookingStore {
	s := &memoryBookingStore{bookings: make(map[utils.SixID]*models.Booking)}
	for i := range bookings {
		b := bookings[i]
		s.bookings[b.ID] = &b
	}
	return s
}

func (s *memoryBookingStore) FindOverlappingConfirmed(_ context.Context, listingID utils.SixID, start, end models.Date, excludeID utils.SixID) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.ListingID == listingID && b.ID != excludeID && b.Status == models.BookingConfirmed && b.Overlaps(start, end) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memoryBookingStore) SetStatus(_ context.Context, bookingID utils.SixID, from, to models.BookingStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != from {
		return ErrBookingChanged
	}
	b.Status = to
	b.UpdatedAt = at
	s.writes++
	return nil
}

func (s *memoryBookingStore) FindConfirmedBooking(_ context.Context, userID, listingID utils.SixID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == userID && b.ListingID == listingID && b.Status == models.BookingConfirmed {
			found := *b
			return &found, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (s *memoryBookingStore) status(id utils.SixID) models.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id].Status
}

// memoryLocker is a process-local db.Locker.
type memoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{slots: make(map[string]chan struct{})}
}

func (l *memoryLocker) Lock(ctx context.Context, key string) (db.Unlock, error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, db.ErrLockTimeout
	}
}

func mustDate(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newBooking(listingID, userID utils.SixID, start, end string, status models.BookingStatus) models.Booking {
	return models.Booking{
		ID:        utils.NewSixID(),
		ListingID: listingID,
		UserID:    userID,
		StartDate: mustDate(start),
		EndDate:   mustDate(end),
		Status:    status,
	}
}
