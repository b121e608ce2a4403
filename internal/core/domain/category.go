package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category groups products; categories form a tree through ParentID
type Category struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Slug      string      `json:"slug"`
	ParentID  *uuid.UUID  `json:"parent_id,omitempty"`
	Children  []*Category `json:"children,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate performs domain validation on the category
func (c *Category) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.ParentID != nil && *c.ParentID == c.ID && c.ID != uuid.Nil {
		return fmt.Errorf("category cannot be its own parent")
	}
	return nil
}

// PrepareForStorage fills id, slug and timestamps
func (c *Category) PrepareForStorage() {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
}

// BuildCategoryTree rebuilds the category tree from a flat list.
// Categories whose parent is missing are promoted to roots. Siblings are sorted by name.
func BuildCategoryTree(flat []Category) []*Category {
	nodes := make(map[uuid.UUID]*Category, len(flat))
	for i := range flat {
		c := flat[i]
		c.Children = nil
		nodes[c.ID] = &c
	}

	var roots []*Category
	for i := range flat {
		node := nodes[flat[i].ID]
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortCategories(roots)
	return roots
}

func sortCategories(cs []*Category) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
	for _, c := range cs {
		sortCategories(c.Children)
	}
}
