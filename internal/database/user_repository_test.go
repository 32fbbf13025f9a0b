package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB := &mockDatabase{db: db}
	repo := NewUserRepository(mockDB)

	t.Run("Success", func(t *testing.T) {
		username := "priya_t"

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(int64(12345), "Priya", username).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Upsert(12345, "Priya", &username)
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Username", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(int64(12345), "Priya", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Upsert(12345, "Priya", nil)
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(int64(12345), "Priya", nil).
			WillReturnError(fmt.Errorf("database error"))

		err := repo.Upsert(12345, "Priya", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert user")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByTelegramID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB := &mockDatabase{db: db}
	repo := NewUserRepository(mockDB)

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		phone := "9876543210"

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows([]string{
				"telegram_id", "name", "username", "phone", "language", "created_at", "last_active",
			}).AddRow(int64(12345), "Priya", nil, phone, "en", now, now))

		user, err := repo.GetByTelegramID(12345)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, int64(12345), user.TelegramID)
		assert.Equal(t, "Priya", user.Name)
		assert.True(t, user.HasPhone())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(int64(99999)).
			WillReturnRows(sqlmock.NewRows([]string{
				"telegram_id", "name", "username", "phone", "language", "created_at", "last_active",
			}))

		user, err := repo.GetByTelegramID(99999)
		require.NoError(t, err)
		assert.Nil(t, user)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdatePhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB := &mockDatabase{db: db}
	repo := NewUserRepository(mockDB)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users SET phone`).
			WithArgs("9876543210", int64(12345)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdatePhone(12345, "9876543210")
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("User Not Found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users SET phone`).
			WithArgs("9876543210", int64(99999)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdatePhone(99999, "9876543210")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetPhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockDB := &mockDatabase{db: db}
	repo := NewUserRepository(mockDB)

	t.Run("Captured", func(t *testing.T) {
		phone := "9876543210"

		mock.ExpectQuery(`SELECT phone FROM users`).
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows([]string{"phone"}).AddRow(phone))

		got, err := repo.GetPhone(12345)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, phone, *got)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Captured", func(t *testing.T) {
		mock.ExpectQuery(`SELECT phone FROM users`).
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows([]string{"phone"}).AddRow(nil))

		got, err := repo.GetPhone(12345)
		require.NoError(t, err)
		assert.Nil(t, got)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
