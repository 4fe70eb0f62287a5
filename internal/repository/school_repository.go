package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edudist/btd-api/internal/models"
)

// SchoolRepository serves the school/block/district reference hierarchy.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository creates the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// ListSchools returns schools, optionally scoped to a block or district.
func (r *SchoolRepository) ListSchools(ctx context.Context, blockCode, districtCode string) ([]models.School, error) {
	query := `SELECT id, udise_code, name, block_code, district_code, created_at FROM schools`
	args := []interface{}{}
	switch {
	case blockCode != "":
		query += ` WHERE block_code = $1`
		args = append(args, blockCode)
	case districtCode != "":
		query += ` WHERE district_code = $1`
		args = append(args, districtCode)
	}
	query += ` ORDER BY name`

	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// GetSchoolByID fetches a school by identifier.
func (r *SchoolRepository) GetSchoolByID(ctx context.Context, id string) (*models.School, error) {
	const query = `SELECT id, udise_code, name, block_code, district_code, created_at FROM schools WHERE id = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get school by id: %w", err)
	}
	return &school, nil
}

// GetSchoolByUDISE fetches a school by its UDISE code.
func (r *SchoolRepository) GetSchoolByUDISE(ctx context.Context, udise string) (*models.School, error) {
	const query = `SELECT id, udise_code, name, block_code, district_code, created_at FROM schools WHERE udise_code = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, udise); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get school by udise: %w", err)
	}
	return &school, nil
}

// ListDistricts returns every district.
func (r *SchoolRepository) ListDistricts(ctx context.Context) ([]models.District, error) {
	const query = `SELECT id, code, name, created_at FROM districts ORDER BY name`
	var districts []models.District
	if err := r.db.SelectContext(ctx, &districts, query); err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	return districts, nil
}

// ListBlocks returns blocks, optionally scoped to one district.
func (r *SchoolRepository) ListBlocks(ctx context.Context, districtCode string) ([]models.Block, error) {
	query := `SELECT id, code, name, district_code, created_at FROM blocks`
	args := []interface{}{}
	if districtCode != "" {
		query += ` WHERE district_code = $1`
		args = append(args, districtCode)
	}
	query += ` ORDER BY name`

	var blocks []models.Block
	if err := r.db.SelectContext(ctx, &blocks, query, args...); err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}
