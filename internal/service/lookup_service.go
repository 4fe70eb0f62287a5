package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/edudist/btd-api/internal/models"
	appErrors "github.com/edudist/btd-api/pkg/errors"
)

type lookupStore interface {
	ListSchools(ctx context.Context, blockCode, districtCode string) ([]models.School, error)
	GetSchoolByUDISE(ctx context.Context, udise string) (*models.School, error)
	ListDistricts(ctx context.Context) ([]models.District, error)
	ListBlocks(ctx context.Context, districtCode string) ([]models.Block, error)
}

type bookStore interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	GetByID(ctx context.Context, id string) (*models.Book, error)
}

// LookupService serves read-only directory data: districts, blocks, schools
// and the book catalogue.
type LookupService struct {
	schools lookupStore
	books   bookStore
}

// NewLookupService constructs the service.
func NewLookupService(schools lookupStore, books bookStore) *LookupService {
	return &LookupService{schools: schools, books: books}
}

// ListDistricts returns every district.
func (s *LookupService) ListDistricts(ctx context.Context) ([]models.District, error) {
	districts, err := s.schools.ListDistricts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list districts")
	}
	return districts, nil
}

// ListBlocks returns blocks, optionally narrowed to one district.
func (s *LookupService) ListBlocks(ctx context.Context, districtCode string) ([]models.Block, error) {
	blocks, err := s.schools.ListBlocks(ctx, districtCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}
	return blocks, nil
}

// ListSchools returns schools in the actor's scope. Block and district
// callers are pinned to their own region regardless of the query.
func (s *LookupService) ListSchools(ctx context.Context, blockCode, districtCode string, actor *models.JWTClaims) ([]models.School, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleBlock:
		blockCode = actor.RegionCode
		districtCode = ""
	case models.RoleDistrict:
		districtCode = actor.RegionCode
	}
	schools, err := s.schools.ListSchools(ctx, blockCode, districtCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	return schools, nil
}

// GetSchool returns one school by UDISE code.
func (s *LookupService) GetSchool(ctx context.Context, udise string) (*models.School, error) {
	school, err := s.schools.GetSchoolByUDISE(ctx, udise)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// ListBooks returns the catalogue with current central stock.
func (s *LookupService) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	books, total, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	return books, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetBook returns one catalogue entry.
func (s *LookupService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	return book, nil
}
