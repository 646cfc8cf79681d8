package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"furnacewear/internal/models"
)

const scanColumns = `id, campaign_id, file_name, scanned_at, point_count, min_thickness, max_thickness, created_at`

func scanScan(row scanner) (models.Scan, error) {
	var (
		sc               models.Scan
		scanned, created string
	)
	err := row.Scan(&sc.ID, &sc.CampaignID, &sc.FileName, &scanned,
		&sc.PointCount, &sc.MinThickness, &sc.MaxThickness, &created)
	if err != nil {
		return models.Scan{}, translate(err)
	}
	if sc.ScannedAt, err = parseTime(scanned); err != nil {
		return models.Scan{}, err
	}
	if sc.CreatedAt, err = parseTime(created); err != nil {
		return models.Scan{}, err
	}
	return sc, nil
}

// ListScans returns the scans of a campaign, oldest first.
func (s *Store) ListScans(ctx context.Context, campaignID string) ([]models.Scan, error) {
	if _, err := s.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE campaign_id = ? ORDER BY scanned_at, file_name`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Scan{}
	for rows.Next() {
		sc, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetScan returns one scan record.
func (s *Store) GetScan(ctx context.Context, id string) (models.Scan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	return scanScan(row)
}

// CreateScan records a scan file for an existing campaign. File names are
// unique across all campaigns. ScannedAt defaults to now.
func (s *Store) CreateScan(ctx context.Context, sc models.Scan) (models.Scan, error) {
	if sc.FileName == "" {
		return models.Scan{}, fmt.Errorf("%w: scan file name is required", ErrInvalid)
	}
	if _, err := s.GetCampaign(ctx, sc.CampaignID); err != nil {
		return models.Scan{}, err
	}
	sc.ID = uuid.NewString()
	sc.CreatedAt = s.timestamp()
	if sc.ScannedAt.IsZero() {
		sc.ScannedAt = sc.CreatedAt
	}
	sc.ScannedAt = sc.ScannedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO scans (id, campaign_id, file_name, scanned_at, point_count, min_thickness, max_thickness, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, sc.ID, sc.CampaignID, sc.FileName, formatTime(sc.ScannedAt),
		sc.PointCount, sc.MinThickness, sc.MaxThickness, formatTime(sc.CreatedAt))
	if err != nil {
		return models.Scan{}, translate(err)
	}
	return sc, nil
}

// DeleteScan removes a scan record and returns it.
func (s *Store) DeleteScan(ctx context.Context, id string) (models.Scan, error) {
	sc, err := s.GetScan(ctx, id)
	if err != nil {
		return models.Scan{}, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return models.Scan{}, translate(err)
	}
	if err := mustAffect(res); err != nil {
		return models.Scan{}, err
	}
	return sc, nil
}
