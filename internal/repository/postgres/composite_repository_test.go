package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/backdrop/internal/domain"
)

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func TestScanComposite_Completed(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	completed := created.Add(time.Minute)

	row := rowFunc(func(dest ...any) error {
		require.Len(t, dest, 15)
		*dest[0].(*string) = "c-1"
		*dest[1].(*string) = "user-1"
		*dest[2].(*string) = "https://img.example/car.jpg"
		*dest[3].(*string) = "https://img.example/bg.png"
		*dest[4].(*sql.NullString) = sql.NullString{String: "front", Valid: true}
		*dest[5].(*domain.CompositeStatus) = domain.StatusCompleted
		*dest[6].(*sql.NullString) = sql.NullString{String: "images", Valid: true}
		*dest[7].(*sql.NullString) = sql.NullString{String: "user-1/car_x.png", Valid: true}
		*dest[8].(*sql.NullString) = sql.NullString{String: "https://s/storage/v1/object/public/images/user-1/car_x.png", Valid: true}
		*dest[9].(*sql.NullInt32) = sql.NullInt32{Int32: 1920, Valid: true}
		*dest[10].(*sql.NullInt32) = sql.NullInt32{Int32: 1080, Valid: true}
		*dest[11].(*sql.NullString) = sql.NullString{}
		*dest[12].(*time.Time) = created
		*dest[13].(*time.Time) = completed
		*dest[14].(*sql.NullTime) = sql.NullTime{Time: completed, Valid: true}
		return nil
	})

	c, err := scanComposite(row)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionFront, c.Position)
	assert.Equal(t, domain.UploadRecord{
		Bucket:    "images",
		ObjectKey: "user-1/car_x.png",
		PublicURL: "https://s/storage/v1/object/public/images/user-1/car_x.png",
	}, c.Upload)
	assert.Equal(t, 1920, c.Width)
	assert.Equal(t, 1080, c.Height)
	assert.Empty(t, c.ErrorMessage)
	require.NotNil(t, c.CompletedAt)
	assert.Equal(t, completed, *c.CompletedAt)
}

func TestScanComposite_Error(t *testing.T) {
	_, err := scanComposite(rowFunc(func(...any) error { return sql.ErrNoRows }))
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.Equal(t, sql.NullString{String: "x", Valid: true}, nullString("x"))
	assert.False(t, nullInt(0).Valid)
	assert.Equal(t, sql.NullInt32{Int32: 7, Valid: true}, nullInt(7))
}
