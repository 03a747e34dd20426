package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/repository"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// CategoryService manages the category hierarchy.
type CategoryService struct {
	categories CategoryStore
}

func NewCategoryService(categories CategoryStore) *CategoryService {
	return &CategoryService{categories: categories}
}

// CategoryRequest is the create/update payload.
type CategoryRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId" binding:"omitempty,uuid"`
	Image       *string `json:"image"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   int     `json:"sortOrder"`
}

func (s *CategoryService) List(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	return s.categories.List(ctx, activeOnly)
}

// Tree returns the nested category hierarchy.
func (s *CategoryService) Tree(ctx context.Context, activeOnly bool) ([]*models.Category, error) {
	list, err := s.categories.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return models.BuildCategoryTree(list), nil
}

func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrCategoryNotFound
	}
	return c, err
}

func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	c, err := s.categories.GetBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrCategoryNotFound
	}
	return c, err
}

func (s *CategoryService) Create(ctx context.Context, req *CategoryRequest) (*models.Category, error) {
	c := &models.Category{ID: uuid.NewString(), IsActive: true}
	if err := s.apply(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, translateSlugError(err)
	}
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, req *CategoryRequest) (*models.Category, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, translateSlugError(err)
	}
	return c, nil
}

func (s *CategoryService) apply(ctx context.Context, c *models.Category, req *CategoryRequest) error {
	c.Name = req.Name
	c.Slug = utils.Slugify(req.Slug)
	if c.Slug == "" {
		c.Slug = utils.Slugify(req.Name)
	}
	if c.Slug == "" {
		return utils.Validation([]utils.FieldError{{Field: "slug", Message: "is invalid"}})
	}
	c.Description = req.Description
	c.Image = req.Image
	c.SortOrder = req.SortOrder
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	c.ParentID = nil
	if req.ParentID != nil && *req.ParentID != "" {
		if *req.ParentID == c.ID {
			return utils.BadRequest("A category cannot be its own parent")
		}
		if err := s.checkParent(ctx, c.ID, *req.ParentID); err != nil {
			return err
		}
		parent := *req.ParentID
		c.ParentID = &parent
	}
	return nil
}

// checkParent rejects missing parents and cycles in the hierarchy.
func (s *CategoryService) checkParent(ctx context.Context, id, parentID string) error {
	seen := map[string]bool{id: true}
	for cur := parentID; cur != ""; {
		if seen[cur] {
			return utils.BadRequest("Category hierarchy cannot contain cycles")
		}
		seen[cur] = true
		p, err := s.categories.GetByID(ctx, cur)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return utils.BadRequest("Parent category does not exist")
			}
			return err
		}
		if p.ParentID == nil {
			break
		}
		cur = *p.ParentID
	}
	return nil
}

// Delete removes a category that has no children and no products.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.categories.CountDependents(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return utils.ErrCategoryInUse
	}
	ok, err := s.categories.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return utils.ErrCategoryNotFound
	}
	return nil
}

func translateSlugError(err error) error {
	if repository.IsUniqueViolation(err, "slug") {
		return utils.ErrSlugExists
	}
	return err
}
