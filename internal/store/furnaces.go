package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"furnacewear/internal/models"
)

const furnaceColumns = `id, name, location, created_at`

func scanFurnace(row scanner) (models.Furnace, error) {
	var (
		f       models.Furnace
		created string
	)
	if err := row.Scan(&f.ID, &f.Name, &f.Location, &created); err != nil {
		return models.Furnace{}, translate(err)
	}
	t, err := parseTime(created)
	if err != nil {
		return models.Furnace{}, err
	}
	f.CreatedAt = t
	return f, nil
}

// ListFurnaces returns every furnace ordered by name.
func (s *Store) ListFurnaces(ctx context.Context) ([]models.Furnace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+furnaceColumns+` FROM furnaces ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Furnace{}
	for rows.Next() {
		f, err := scanFurnace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFurnace returns one furnace.
func (s *Store) GetFurnace(ctx context.Context, id string) (models.Furnace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+furnaceColumns+` FROM furnaces WHERE id = ?`, id)
	return scanFurnace(row)
}

// CreateFurnace inserts a furnace with a new id. Names are unique.
func (s *Store) CreateFurnace(ctx context.Context, f models.Furnace) (models.Furnace, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return models.Furnace{}, fmt.Errorf("%w: furnace name is required", ErrInvalid)
	}
	f.ID = uuid.NewString()
	f.CreatedAt = s.timestamp()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO furnaces (id, name, location, created_at)
        VALUES (?, ?, ?, ?)
    `, f.ID, f.Name, f.Location, formatTime(f.CreatedAt))
	if err != nil {
		return models.Furnace{}, translate(err)
	}
	return f, nil
}

// UpdateFurnace changes a furnace's name and location.
func (s *Store) UpdateFurnace(ctx context.Context, f models.Furnace) (models.Furnace, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return models.Furnace{}, fmt.Errorf("%w: furnace name is required", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE furnaces SET name = ?, location = ? WHERE id = ?`,
		f.Name, f.Location, f.ID)
	if err != nil {
		return models.Furnace{}, translate(err)
	}
	if err := mustAffect(res); err != nil {
		return models.Furnace{}, err
	}
	return s.GetFurnace(ctx, f.ID)
}

// DeleteFurnace removes a furnace that has no campaigns.
func (s *Store) DeleteFurnace(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns WHERE furnace_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: furnace has %d campaign(s)", ErrConflict, n)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM furnaces WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return mustAffect(res)
}
