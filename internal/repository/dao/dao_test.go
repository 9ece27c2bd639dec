package dao

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// The suite needs a local Docker daemon; set DAO_TEST_DOCKER=1 to run it.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("DAO_TEST_DOCKER") == "" {
		t.Skip("set DAO_TEST_DOCKER=1 to run the storage integration tests")
	}

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	resource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=attendly_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	dsn := fmt.Sprintf("host=localhost port=%v user=postgres password=secret dbname=attendly_test sslmode=disable",
		resource.GetPort("5432/tcp"))

	var db *gorm.DB
	err = pool.Retry(func() error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		return openErr
	})
	require.NoError(t, err)

	require.NoError(t, InitTables(db))

	return db
}

func seedTicketedEvent(t *testing.T, db *gorm.DB, capacity int) (Event, TicketCategory) {
	t.Helper()

	event := Event{
		Name:              "integration",
		Mode:              "ticketed",
		RegistrationStart: time.Now().Add(-time.Hour),
		RegistrationEnd:   time.Now().Add(time.Hour),
		EventStart:        time.Now().Add(-time.Hour),
		EventEnd:          time.Now().Add(2 * time.Hour),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	require.NoError(t, db.Create(&event).Error)

	category := TicketCategory{
		EventID:    event.ID,
		Name:       "standard",
		Capacity:   capacity,
		Available:  capacity,
		PriceCents: 1000,
		Currency:   "EUR",
	}
	require.NoError(t, db.Create(&category).Error)

	return event, category
}

func TestRegistrationDAO_ConditionalTransitions(t *testing.T) {
	db := openTestDB(t)
	d := NewRegistrationDAO(db)
	ctx := context.Background()

	created, err := d.Insert(ctx, Registration{
		EventID: 1, ParticipantID: 1, Type: "member",
		FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com",
		Status: "registered", ShortCode: "ABCD234567", Token: "tok",
	})
	require.NoError(t, err)

	// Short codes are unique across the table.
	_, err = d.Insert(ctx, Registration{
		EventID: 1, ParticipantID: 2, Type: "member",
		FirstName: "Bo", LastName: "Chen", Email: "bo@example.com",
		Status: "registered", ShortCode: "ABCD234567", Token: "tok",
	})
	assert.ErrorIs(t, err, ErrCodeTaken)

	// The attended transition applies exactly once.
	now := time.Now()
	require.NoError(t, d.MarkAttended(ctx, created.ID, "token", now))
	err = d.MarkAttended(ctx, created.ID, "code", now)
	assert.ErrorIs(t, err, ErrStateConflict)

	// Terminal rows refuse cancellation too.
	err = d.MarkCancelled(ctx, created.ID)
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestRegistrationDAO_SetVerificationCodeOnlyOnce(t *testing.T) {
	db := openTestDB(t)
	d := NewRegistrationDAO(db)
	ctx := context.Background()

	created, err := d.Insert(ctx, Registration{
		EventID: 1, ParticipantID: 1, Type: "member",
		FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com",
		Status: "registered", ShortCode: "CODE234567", Token: "tok",
	})
	require.NoError(t, err)

	require.NoError(t, d.SetVerificationCode(ctx, created.ID, "AAAAAA"))

	err = d.SetVerificationCode(ctx, created.ID, "BBBBBB")
	assert.ErrorIs(t, err, ErrStateConflict)

	found, err := d.FindByEventAndVerificationCode(ctx, 1, "AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestReservationDAO_DecrementNeverOversells(t *testing.T) {
	db := openTestDB(t)
	d := NewReservationDAO(db)
	ctx := context.Background()

	event, category := seedTicketedEvent(t, db, 3)

	_, err := d.Insert(ctx, Reservation{
		ID: "res-1", EventID: event.ID, CategoryID: category.ID,
		Quantity: 2, Status: "pending",
		ExpiresAt: time.Now().Add(time.Minute), CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = d.Insert(ctx, Reservation{
		ID: "res-2", EventID: event.ID, CategoryID: category.ID,
		Quantity: 2, Status: "pending",
		ExpiresAt: time.Now().Add(time.Minute), CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	var remaining TicketCategory
	require.NoError(t, db.First(&remaining, category.ID).Error)
	assert.Equal(t, 1, remaining.Available)
}

func TestReservationDAO_ExpireReturnsQuantity(t *testing.T) {
	db := openTestDB(t)
	d := NewReservationDAO(db)
	ctx := context.Background()

	event, category := seedTicketedEvent(t, db, 5)

	_, err := d.Insert(ctx, Reservation{
		ID: "res-due", EventID: event.ID, CategoryID: category.ID,
		Quantity: 2, Status: "pending",
		ExpiresAt: time.Now().Add(-time.Minute), CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	due, err := d.FindDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, d.MarkExpired(ctx, "res-due"))

	var remaining TicketCategory
	require.NoError(t, db.First(&remaining, category.ID).Error)
	assert.Equal(t, 5, remaining.Available)

	// The sweep lost the race if a commit landed first; and vice versa.
	err = d.MarkCommitted(ctx, "res-due")
	assert.ErrorIs(t, err, ErrReservationExpired)
}
