package storage

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// cardColumns lists the columns returned by card SELECT queries.
var cardColumns = []string{
	"id", "name", "description", "website", "tel", "email", "address",
	"qr_code", "category", "search_keywords", "status", "last_updated",
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return NewPostgresStore(db, testLogger()), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func TestSearchCards(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM cards WHERE name ILIKE .+ ORDER BY id").
		WithArgs("%acme%").
		WillReturnRows(sqlmock.NewRows(cardColumns).
			AddRow(1, "Acme", "Widgets", "https://acme.example", "010-1234567;87654321", nil, nil,
				nil, "科技", nil, "published", now).
			AddRow(3, "Acme Labs", nil, nil, nil, nil, nil, nil, nil, nil, "pending", nil))

	cards, err := store.SearchCards(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, int64(1), cards[0].ID)
	assert.Equal(t, []string{"010-1234567", "87654321"}, cards[0].Phones())
	assert.Equal(t, "科技", cards[0].CategoryOrDefault())
	assert.Equal(t, models.CardStatusPublished, cards[0].Status)
	assert.Nil(t, cards[1].Website)
	assert.Equal(t, models.UnclassifiedCategory, cards[1].CategoryOrDefault())
	assert.Equal(t, models.CardStatusPending, cards[1].Status)

	expectationsMet(t, mock)
}

func TestSearchCards_EmptyResultIsNotNil(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM cards WHERE").
		WithArgs("%%").
		WillReturnRows(sqlmock.NewRows(cardColumns))

	cards, err := store.SearchCards(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)

	expectationsMet(t, mock)
}

func TestListCards(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM cards ORDER BY id").
		WillReturnRows(sqlmock.NewRows(cardColumns).
			AddRow(1, "A", nil, nil, nil, nil, nil, nil, nil, nil, "published", nil))

	cards, err := store.ListCards(context.Background())
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	expectationsMet(t, mock)
}

func TestGetCard(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM cards WHERE id").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(cardColumns).
				AddRow(7, "Globex", nil, "https://globex.example", nil, "a@globex.com", nil,
					nil, nil, nil, "published", nil))

		card, err := store.GetCard(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, "Globex", card.Name)
		assert.Equal(t, []string{"a@globex.com"}, card.Emails())

		expectationsMet(t, mock)
	})

	t.Run("missing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM cards WHERE id").
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetCard(context.Background(), 99)
		assert.ErrorIs(t, err, utils.ErrNotFound)

		expectationsMet(t, mock)
	})

	t.Run("driver error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM cards WHERE id").
			WithArgs(int64(1)).
			WillReturnError(errors.New("connection lost"))

		_, err := store.GetCard(context.Background(), 1)
		assert.ErrorIs(t, err, utils.ErrDatabase)
		assert.False(t, errors.Is(err, utils.ErrNotFound))

		expectationsMet(t, mock)
	})
}

func TestInsertCard(t *testing.T) {
	store, mock := newMockStore(t)

	card := &models.Card{
		Name:     "Acme",
		Website:  strPtr("https://example.com/a"),
		Phone:    models.JoinList([]string{"87654321", "010-1234567"}),
		Category: strPtr(models.UnclassifiedCategory),
		Status:   models.CardStatusPending,
	}

	mock.ExpectQuery(`INSERT INTO cards .+ SELECT COALESCE\(MAX\(id\), 0\) \+ 1`).
		WithArgs("Acme", nil, "https://example.com/a", "87654321;010-1234567", nil, nil,
			nil, models.UnclassifiedCategory, nil, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	id, err := store.InsertCard(context.Background(), card)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	expectationsMet(t, mock)
}

func TestInsertCard_Error(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO cards").WillReturnError(errors.New("duplicate key value"))

	_, err := store.InsertCard(context.Background(), &models.Card{Name: "x"})
	assert.ErrorIs(t, err, utils.ErrDatabase)

	expectationsMet(t, mock)
}

func TestUpdateCard(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE cards SET .+ WHERE id").
			WithArgs(int64(3), "New", nil, nil, nil, nil, nil, nil, nil, nil, "published").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateCard(context.Background(), &models.Card{ID: 3, Name: "New", Status: models.CardStatusPublished})
		require.NoError(t, err)

		expectationsMet(t, mock)
	})

	t.Run("unset status keeps stored", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`status = COALESCE\(NULLIF\(\$11, ''\), status\)`).
			WithArgs(int64(5), "Edited", nil, nil, nil, nil, nil, nil, nil, nil, "").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateCard(context.Background(), &models.Card{ID: 5, Name: "Edited"})
		require.NoError(t, err)

		expectationsMet(t, mock)
	})

	t.Run("missing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE cards").WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateCard(context.Background(), &models.Card{ID: 4, Name: "New"})
		assert.ErrorIs(t, err, utils.ErrNotFound)

		expectationsMet(t, mock)
	})
}

func TestDeleteCard(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM cards WHERE id").WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM cards WHERE id").WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteCard(context.Background(), 2))
	assert.ErrorIs(t, store.DeleteCard(context.Background(), 2), utils.ErrNotFound)

	expectationsMet(t, mock)
}

func TestCountMatching(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cards WHERE website = .+ OR name = `).
		WithArgs("https://example.com/a", "Acme").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := store.CountMatching(context.Background(), "https://example.com/a", "Acme")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expectationsMet(t, mock)
}

func TestCategories(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT category FROM cards").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("金融").AddRow("科技"))

	categories, err := store.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"金融", "科技"}, categories)

	expectationsMet(t, mock)
}

func TestCreateFeedback(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO error_feedback").
			WithArgs(int64(1), "wrong phone", "new").
			WillReturnRows(sqlmock.NewRows([]string{"feedback_id"}).AddRow(10))

		id, err := store.CreateFeedback(context.Background(), 1, "wrong phone")
		require.NoError(t, err)
		assert.Equal(t, int64(10), id)

		expectationsMet(t, mock)
	})

	t.Run("unknown card", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO error_feedback").
			WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

		_, err := store.CreateFeedback(context.Background(), 42, "?")
		assert.ErrorIs(t, err, utils.ErrNotFound)

		expectationsMet(t, mock)
	})
}

func TestListFeedback(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	cols := []string{"feedback_id", "card_id", "card_name", "content", "submitted_at",
		"status", "processed_by", "processed_at", "resolution"}
	mock.ExpectQuery("SELECT .+ FROM error_feedback f LEFT JOIN cards c").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, 1, "Acme", "bad email", now, "resolved", "admin", now, "fixed").
			AddRow(1, nil, nil, "orphan", now, "new", nil, nil, nil))

	feedback, err := store.ListFeedback(context.Background())
	require.NoError(t, err)
	require.Len(t, feedback, 2)
	assert.Equal(t, "Acme", *feedback[0].CardName)
	assert.Equal(t, models.FeedbackStatusResolved, feedback[0].Status)
	assert.Nil(t, feedback[1].CardID)

	expectationsMet(t, mock)
}

func TestUpdateFeedback(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE error_feedback SET .+ processed_at = NOW").
		WithArgs(int64(2), "resolved", "admin", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE error_feedback").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateFeedback(context.Background(), 2, FeedbackUpdate{
		Status:      models.FeedbackStatusResolved,
		ProcessedBy: strPtr("admin"),
	})
	require.NoError(t, err)

	err = store.UpdateFeedback(context.Background(), 3, FeedbackUpdate{Status: models.FeedbackStatusRejected})
	assert.ErrorIs(t, err, utils.ErrNotFound)

	expectationsMet(t, mock)
}

func TestMigrate(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cards").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_cards_website").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_cards_name").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS error_feedback").WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrDatabase)
	assert.Contains(t, err.Error(), "migration step 4")

	expectationsMet(t, mock)
}
