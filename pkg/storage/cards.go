package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// cardSelectColumns lists columns for SELECT queries on cards.
const cardSelectColumns = `id, name, description, website, tel, email, address,
	qr_code, category, search_keywords, status, last_updated`

// SearchCards implements CardStore
func (s *PostgresStore) SearchCards(ctx context.Context, keyword string) ([]models.Card, error) {
	query := `SELECT ` + cardSelectColumns + ` FROM cards
		WHERE name ILIKE $1
			OR description ILIKE $1
			OR website ILIKE $1
			OR address ILIKE $1
			OR category ILIKE $1
			OR search_keywords ILIKE $1
		ORDER BY id`

	cards := []models.Card{}
	if err := s.db.SelectContext(ctx, &cards, query, "%"+keyword+"%"); err != nil {
		return nil, dbErr("search cards", err)
	}
	return cards, nil
}

// ListCards implements CardStore
func (s *PostgresStore) ListCards(ctx context.Context) ([]models.Card, error) {
	query := `SELECT ` + cardSelectColumns + ` FROM cards ORDER BY id`

	cards := []models.Card{}
	if err := s.db.SelectContext(ctx, &cards, query); err != nil {
		return nil, dbErr("list cards", err)
	}
	return cards, nil
}

// GetCard implements CardStore
func (s *PostgresStore) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardSelectColumns + ` FROM cards WHERE id = $1`

	var card models.Card
	if err := s.db.GetContext(ctx, &card, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: card %d", utils.ErrNotFound, id)
		}
		return nil, dbErr("get card", err)
	}
	return &card, nil
}

// InsertCard implements CardStore. The id is computed inside the INSERT so
// the read-then-write window is a single statement.
func (s *PostgresStore) InsertCard(ctx context.Context, card *models.Card) (int64, error) {
	query := `
		INSERT INTO cards (id, name, description, website, tel, email, address,
			qr_code, category, search_keywords, status, last_updated)
		SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		FROM cards
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		card.Name, card.Description, card.Website, card.Phone, card.Email, card.Address,
		card.QRCode, card.Category, card.SearchKeywords, string(card.Status),
	).Scan(&id)
	if err != nil {
		return 0, dbErr("insert card", err)
	}
	s.log.WithField("card_id", id).Debug("Inserted card")
	return id, nil
}

// UpdateCard implements CardStore
func (s *PostgresStore) UpdateCard(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards
		SET name = $2, description = $3, website = $4, tel = $5, email = $6,
			address = $7, qr_code = $8, category = $9, search_keywords = $10,
			status = COALESCE(NULLIF($11, ''), status), last_updated = NOW()
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		card.ID, card.Name, card.Description, card.Website, card.Phone, card.Email,
		card.Address, card.QRCode, card.Category, card.SearchKeywords, string(card.Status),
	)
	if err != nil {
		return dbErr("update card", err)
	}
	return execRequireRows(result, nil, fmt.Errorf("%w: card %d", utils.ErrNotFound, card.ID))
}

// DeleteCard implements CardStore
func (s *PostgresStore) DeleteCard(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return dbErr("delete card", err)
	}
	return execRequireRows(result, nil, fmt.Errorf("%w: card %d", utils.ErrNotFound, id))
}

// CountMatching implements CardStore
func (s *PostgresStore) CountMatching(ctx context.Context, website, name string) (int, error) {
	query := `SELECT COUNT(*) FROM cards WHERE website = $1 OR name = $2`

	var count int
	if err := s.db.GetContext(ctx, &count, query, website, name); err != nil {
		return 0, dbErr("count matching cards", err)
	}
	return count, nil
}

// Categories implements CardStore
func (s *PostgresStore) Categories(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT category FROM cards
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category`

	categories := []string{}
	if err := s.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, dbErr("list categories", err)
	}
	return categories, nil
}
