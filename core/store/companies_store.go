package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

type ExternalCompany struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Categories     []Category `json:"categories"`
	PlatformAccess bool       `json:"platform_access"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (c *ExternalCompany) Handles(category Category) bool {
	for _, item := range c.Categories {
		if item == category {
			return true
		}
	}
	return false
}

type CompaniesStore interface {
	CreateCompany(ctx context.Context, company *ExternalCompany) (int64, error)
	UpdateCompany(ctx context.Context, company *ExternalCompany) error
	GetCompany(ctx context.Context, id int64) (*ExternalCompany, error)
	ListCompanies(ctx context.Context) ([]ExternalCompany, error)
}

type companiesStore struct {
	db *DB
}

func NewCompaniesStore(db *DB) CompaniesStore {
	return &companiesStore{db: db}
}

func (s *companiesStore) CreateCompany(ctx context.Context, company *ExternalCompany) (int64, error) {
	now := time.Now().UTC()
	company.Categories = normalizeCategories(company.Categories)
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO external_companies(name, categories, platform_access, created_at, updated_at)
		VALUES(?,?,?,?,?) RETURNING id`,
		strings.TrimSpace(company.Name), categoriesToJSON(company.Categories), company.PlatformAccess, now, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	company.ID = id
	company.CreatedAt = now
	company.UpdatedAt = now
	return id, nil
}

func (s *companiesStore) UpdateCompany(ctx context.Context, company *ExternalCompany) error {
	now := time.Now().UTC()
	company.Categories = normalizeCategories(company.Categories)
	res, err := s.db.ExecContext(ctx, `
		UPDATE external_companies SET name=?, categories=?, platform_access=?, updated_at=? WHERE id=?`,
		strings.TrimSpace(company.Name), categoriesToJSON(company.Categories), company.PlatformAccess, now, company.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	company.UpdatedAt = now
	return nil
}

func (s *companiesStore) GetCompany(ctx context.Context, id int64) (*ExternalCompany, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, categories, platform_access, created_at, updated_at
		FROM external_companies WHERE id=?`, id)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *companiesStore) ListCompanies(ctx context.Context) ([]ExternalCompany, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, categories, platform_access, created_at, updated_at
		FROM external_companies ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ExternalCompany
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

func scanCompany(row rowScanner) (*ExternalCompany, error) {
	var c ExternalCompany
	var cats string
	if err := row.Scan(&c.ID, &c.Name, &cats, &c.PlatformAccess, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Categories = categoriesFromJSON(cats)
	return &c, nil
}

func normalizeCategories(in []Category) []Category {
	seen := map[Category]struct{}{}
	var out []Category
	for _, raw := range in {
		c, ok := ParseCategory(string(raw))
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func categoriesToJSON(cats []Category) string {
	if len(cats) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(cats)
	return string(b)
}

func categoriesFromJSON(raw string) []Category {
	var cats []Category
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(raw), &cats)
	return normalizeCategories(cats)
}
