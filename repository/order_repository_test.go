package repository_test

import (
	"context"
	"regexp"
	"testing"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTransitionStatus_ConflictWhenStatusMoved(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow(orderID, "cancelled"))
	mock.ExpectRollback()

	err := repo.TransitionStatus(context.Background(), orderID,
		models.StatusPending, models.StatusPaid, "admin", "")
	assert.ErrorIs(t, err, repository.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	mock.ExpectRollback()

	err := repo.TransitionStatus(context.Background(), orderID,
		models.StatusPending, models.StatusPaid, "admin", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTransitionStatus_AppendsHistory(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_status_histories"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	err := repo.TransitionStatus(context.Background(), orderID,
		models.StatusPending, models.StatusPaid, "payment-service", "payment succeeded")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_CancellationReleasesStock(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	orderID := uuid.New()
	variantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_status_histories"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "order_items"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "variant_id", "quantity"}).
			AddRow(uuid.New(), orderID, variantID, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.TransitionStatus(context.Background(), orderID,
		models.StatusPending, models.StatusCancelled, "admin", "customer request")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithReservation_RollsBackOnInsufficientStock(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	variantID := uuid.New()
	order := &models.Order{
		OrderNumber: models.NewOrderNumber(),
		UserID:      uuid.New(),
		Status:      models.StatusPending,
		OrderItems: []models.OrderItem{
			{VariantID: variantID, Quantity: 5},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "inventory_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"variant_id", "available"}).
			AddRow(variantID, 2))
	mock.ExpectRollback()

	err := repo.CreateWithReservation(context.Background(), order)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
