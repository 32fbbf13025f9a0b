package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wakemetravel/wakeme-backend/internal/config"
	"github.com/wakemetravel/wakeme-backend/internal/database"
	"github.com/wakemetravel/wakeme-backend/internal/models"
	"github.com/wakemetravel/wakeme-backend/internal/services"
	"github.com/wakemetravel/wakeme-backend/pkg/geo"
	"github.com/wakemetravel/wakeme-backend/pkg/rail"
	"github.com/wakemetravel/wakeme-backend/pkg/validator"
)

var tripColumns = []string{
	"id", "user_telegram_id", "type", "from_location", "to_location", "status",
	"current_lat", "current_lng", "destination_lat", "destination_lng",
	"pnr", "train_number", "train_name", "departure_time", "arrival_time",
	"alert_time", "confirmed", "created_at", "updated_at",
}

type stubGeocoder struct{}

func (s *stubGeocoder) Geocode(address string) (*geo.Coordinate, error) {
	return &geo.Coordinate{Lat: 18.75, Lng: 73.41}, nil
}

type stubTickets struct{}

func (s *stubTickets) FetchPNR(pnr string) (*rail.TicketInfo, error) {
	return nil, nil
}

// setupTestDB creates a mock database for testing
func setupTestDB(t *testing.T) (database.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &mockDatabase{db: db}, mock, func() { db.Close() }
}

func setupTripHandler(db database.DB) *TripHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.AlertConfig{
		BusAlertKm:           7,
		BusWarnKm:            15,
		BusInfoKm:            30,
		TrainMinStationsLeft: 2,
		TrainAlertKm:         50,
		TrainAlertOffset:     30 * time.Minute,
		MaxCallAttempts:      5,
		CallRetryDelay:       2 * time.Minute,
		RecentCallWindow:     10 * time.Minute,
	}

	tripService := services.NewTripService(
		database.NewTripRepository(db),
		database.NewUserRepository(db),
		&stubGeocoder{},
		&stubTickets{},
		validator.NewPhoneValidator(),
		cfg,
		logger,
	)

	return NewTripHandler(tripService)
}

func setupTripRouter(handler *TripHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/trips/bus", handler.StartBusTrip)
	router.GET("/api/v1/trips/status/:telegram_id", handler.TripStatus)
	router.POST("/api/v1/trips/cancel/:telegram_id", handler.CancelTrip)
	return router
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStartBusTrip_Success(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(int64(12345), "Priya", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM trips`).
		WithArgs(int64(12345)).
		WillReturnRows(sqlmock.NewRows(tripColumns))
	mock.ExpectQuery(`INSERT INTO trips`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	router := setupTripRouter(setupTripHandler(db))
	w := performJSON(router, http.MethodPost, "/api/v1/trips/bus", gin.H{
		"telegram_id": 12345,
		"name":        "Priya",
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Contains(t, response["message"], "live location")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartBusTrip_ValidationError(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	router := setupTripRouter(setupTripHandler(db))
	w := performJSON(router, http.MethodPost, "/api/v1/trips/bus", gin.H{
		"telegram_id": 12345,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "validation_error", response["error"])
}

func TestStartBusTrip_AlreadyInProgress(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	tripID := uuid.New().String()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(int64(12345), "Priya", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM trips`).
		WithArgs(int64(12345)).
		WillReturnRows(sqlmock.NewRows(tripColumns).AddRow(
			tripID, int64(12345), string(models.TripTypeBus), nil, "Lonavala", string(models.TripStatusActive),
			nil, nil, nil, nil,
			nil, nil, nil, nil, nil,
			nil, false, now, now,
		))

	router := setupTripRouter(setupTripHandler(db))
	w := performJSON(router, http.MethodPost, "/api/v1/trips/bus", gin.H{
		"telegram_id": 12345,
		"name":        "Priya",
	})

	assert.Equal(t, http.StatusConflict, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "trip_in_progress", response["error"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripStatus_NotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM trips`).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows(tripColumns))

	router := setupTripRouter(setupTripHandler(db))
	w := performJSON(router, http.MethodGet, "/api/v1/trips/status/999", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "no_active_trip", response["error"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripStatus_InvalidID(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	router := setupTripRouter(setupTripHandler(db))
	w := performJSON(router, http.MethodGet, "/api/v1/trips/status/abc", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "validation_error", response["error"])
}

func TestCancelTrip(t *testing.T) {
	t.Run("Cancels Active Trip", func(t *testing.T) {
		db, mock, cleanup := setupTestDB(t)
		defer cleanup()

		now := time.Now()
		tripID := uuid.New().String()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows(tripColumns).AddRow(
				tripID, int64(12345), string(models.TripTypeBus), nil, "Lonavala", string(models.TripStatusActive),
				nil, nil, nil, nil,
				nil, nil, nil, nil, nil,
				nil, false, now, now,
			))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(tripID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		router := setupTripRouter(setupTripHandler(db))
		w := performJSON(router, http.MethodPost, "/api/v1/trips/cancel/12345", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.Equal(t, true, response["cancelled"])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing To Cancel", func(t *testing.T) {
		db, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows(tripColumns))

		router := setupTripRouter(setupTripHandler(db))
		w := performJSON(router, http.MethodPost, "/api/v1/trips/cancel/12345", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.Equal(t, false, response["cancelled"])

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// mockDatabase wraps sql.DB to implement the database.DB interface
type mockDatabase struct {
	db *sql.DB
}

func (m *mockDatabase) Get(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Get not implemented in mock")
}

func (m *mockDatabase) Select(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Select not implemented in mock")
}

func (m *mockDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *mockDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *mockDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *mockDatabase) Close() error {
	return m.db.Close()
}

func (m *mockDatabase) Ping() error {
	return m.db.Ping()
}
