package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"furnacewear/internal/models"
)

const campaignColumns = `id, furnace_id, name, started_at, ended_at`

func scanCampaign(row scanner) (models.Campaign, error) {
	var (
		c       models.Campaign
		started string
		ended   sql.NullString
	)
	if err := row.Scan(&c.ID, &c.FurnaceID, &c.Name, &started, &ended); err != nil {
		return models.Campaign{}, translate(err)
	}
	t, err := parseTime(started)
	if err != nil {
		return models.Campaign{}, err
	}
	c.StartedAt = t
	if ended.Valid {
		e, err := parseTime(ended.String)
		if err != nil {
			return models.Campaign{}, err
		}
		c.EndedAt = &e
	}
	return c, nil
}

// ListCampaigns returns the campaigns of a furnace, oldest first.
func (s *Store) ListCampaigns(ctx context.Context, furnaceID string) ([]models.Campaign, error) {
	if _, err := s.GetFurnace(ctx, furnaceID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE furnace_id = ? ORDER BY started_at, name`, furnaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCampaign returns one campaign.
func (s *Store) GetCampaign(ctx context.Context, id string) (models.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	return scanCampaign(row)
}

// CreateCampaign inserts a campaign for an existing furnace. StartedAt
// defaults to now.
func (s *Store) CreateCampaign(ctx context.Context, c models.Campaign) (models.Campaign, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return models.Campaign{}, fmt.Errorf("%w: campaign name is required", ErrInvalid)
	}
	if _, err := s.GetFurnace(ctx, c.FurnaceID); err != nil {
		return models.Campaign{}, err
	}
	c.ID = uuid.NewString()
	if c.StartedAt.IsZero() {
		c.StartedAt = s.timestamp()
	}
	c.StartedAt = c.StartedAt.UTC()

	var ended any
	if c.EndedAt != nil {
		e := c.EndedAt.UTC()
		c.EndedAt = &e
		ended = formatTime(e)
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO campaigns (id, furnace_id, name, started_at, ended_at)
        VALUES (?, ?, ?, ?, ?)
    `, c.ID, c.FurnaceID, c.Name, formatTime(c.StartedAt), ended)
	if err != nil {
		return models.Campaign{}, translate(err)
	}
	return c, nil
}

// DeleteCampaign removes a campaign and its scan records, returning the
// file names of the removed scans.
func (s *Store) DeleteCampaign(ctx context.Context, id string) ([]string, error) {
	scans, err := s.ListScans(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := mustAffect(res); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(scans))
	for _, sc := range scans {
		names = append(names, sc.FileName)
	}
	return names, nil
}
