package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rescue-ranger/internal/models"
)

func setupMockReadingsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *ReadingsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewReadingsRepository(db, logger)

	return db, mock, repo
}

func TestSaveReading_Success(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	battery := 80

	reading := &models.Reading{
		DeviceID:  "device-123",
		Timestamp: now,
		HeartRate: 75,
		SpO2:      98,
		Location: models.Location{
			Latitude:  31.2304,
			Longitude: 121.4737,
		},
		BatteryLevel:    &battery,
		EmergencyStatus: false,
	}

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(42))

	mock.ExpectQuery(`INSERT INTO readings`).
		WithArgs("device-123", now, 75, 98, 31.2304, 121.4737, &battery, false).
		WillReturnRows(rows)

	err := repo.SaveReading(ctx, reading)

	require.NoError(t, err)
	assert.Equal(t, int64(42), reading.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReading_MissingDeviceID(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	err := repo.SaveReading(context.Background(), &models.Reading{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "device_id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReading_DBError(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO readings`).
		WillReturnError(sql.ErrConnDone)

	err := repo.SaveReading(context.Background(), &models.Reading{DeviceID: "device-123"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save reading")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmergencyStatus_Success(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE readings`).
		WithArgs(true, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateEmergencyStatus(context.Background(), 42, true)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmergencyStatus_NotFound(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE readings`).
		WithArgs(true, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateEmergencyStatus(context.Background(), 42, true)

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrReadingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestReading_Success(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "device_id", "timestamp", "heart_rate", "spo2",
		"latitude", "longitude", "battery_level", "emergency_status",
	}).AddRow(
		int64(42), "device-123", now, 75, 98,
		31.2304, 121.4737, int64(80), false,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("device-123").
		WillReturnRows(rows)

	reading, err := repo.GetLatestReading(context.Background(), "device-123")

	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Equal(t, int64(42), reading.ID)
	assert.Equal(t, "device-123", reading.DeviceID)
	assert.Equal(t, 75, reading.HeartRate)
	assert.Equal(t, 98, reading.SpO2)
	assert.Equal(t, 31.2304, reading.Location.Latitude)
	assert.Equal(t, 121.4737, reading.Location.Longitude)
	require.NotNil(t, reading.BatteryLevel)
	assert.Equal(t, 80, *reading.BatteryLevel)
	assert.False(t, reading.EmergencyStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestReading_NotFound(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("device-unknown").
		WillReturnError(sql.ErrNoRows)

	reading, err := repo.GetLatestReading(context.Background(), "device-unknown")

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrReadingNotFound)
	assert.Nil(t, reading)
	require.NoError(t, mock.ExpectationsWereMet())
}

// 校验往返：hr=75 spO2=98 入库后再读出，字段一致且 emergency_status=false
func TestSaveReading_RoundTrip(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	reading := &models.Reading{
		DeviceID:  "device-123",
		Timestamp: now,
		HeartRate: 75,
		SpO2:      98,
		Location: models.Location{
			Latitude:  31.2304,
			Longitude: 121.4737,
		},
		EmergencyStatus: false,
	}

	mock.ExpectQuery(`INSERT INTO readings`).
		WithArgs("device-123", now, 75, 98, 31.2304, 121.4737, nil, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	require.NoError(t, repo.SaveReading(ctx, reading))

	mock.ExpectQuery(`SELECT`).
		WithArgs("device-123").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "device_id", "timestamp", "heart_rate", "spo2",
			"latitude", "longitude", "battery_level", "emergency_status",
		}).AddRow(
			int64(7), reading.DeviceID, reading.Timestamp, reading.HeartRate, reading.SpO2,
			reading.Location.Latitude, reading.Location.Longitude, nil, reading.EmergencyStatus,
		))

	stored, err := repo.GetLatestReading(ctx, "device-123")

	require.NoError(t, err)
	assert.Equal(t, reading.DeviceID, stored.DeviceID)
	assert.Equal(t, reading.HeartRate, stored.HeartRate)
	assert.Equal(t, reading.SpO2, stored.SpO2)
	assert.Equal(t, reading.Location, stored.Location)
	assert.Nil(t, stored.BatteryLevel)
	assert.False(t, stored.EmergencyStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}
