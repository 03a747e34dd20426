package models

import (
	"sort"
	"time"
)

// Category groups products; categories nest through ParentID.
type Category struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Slug        string      `db:"slug" json:"slug"`
	Description string      `db:"description" json:"description"`
	ParentID    *string     `db:"parent_id" json:"parentId"`
	Image       *string     `db:"image" json:"image,omitempty"`
	IsActive    bool        `db:"is_active" json:"isActive"`
	SortOrder   int         `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
	Children    []*Category `db:"-" json:"children,omitempty"`
}

// BuildCategoryTree nests a flat list by ParentID. Orphans whose parent is
// missing from the list are promoted to roots.
func BuildCategoryTree(list []Category) []*Category {
	nodes := make(map[string]*Category, len(list))
	for i := range list {
		c := list[i]
		c.Children = nil
		nodes[c.ID] = &c
	}

	var roots []*Category
	for i := range list {
		node := nodes[list[i].ID]
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortCategories(roots)
	return roots
}

func sortCategories(list []*Category) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].Name < list[j].Name
	})
	for _, c := range list {
		sortCategories(c.Children)
	}
}
