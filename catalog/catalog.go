package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AlexJ236/Impulso-Digital/models"
)

// Catalog is the read-only course dataset. Safe for concurrent use.
type Catalog struct {
	courses []models.Course
	byID    map[string]int
}

// Load reads the dataset once. Duplicate ids and non-positive prices are rejected.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var courses []models.Course
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return New(courses)
}

func New(courses []models.Course) (*Catalog, error) {
	c := &Catalog{
		courses: courses,
		byID:    make(map[string]int, len(courses)),
	}
	for i, course := range courses {
		if course.ID == "" {
			return nil, fmt.Errorf("course at index %d has no id", i)
		}
		if _, dup := c.byID[course.ID]; dup {
			return nil, fmt.Errorf("duplicate course id %q", course.ID)
		}
		if !course.Price.IsPositive() {
			return nil, fmt.Errorf("course %q has non-positive price %s", course.ID, course.Price)
		}
		c.byID[course.ID] = i
	}
	return c, nil
}

func (c *Catalog) Find(id string) (models.Course, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Course{}, false
	}
	return c.courses[i], true
}

// List returns courses in dataset order, filtered by category when one is given.
func (c *Catalog) List(category string) []models.Course {
	out := make([]models.Course, 0, len(c.courses))
	for _, course := range c.courses {
		if category == "" || course.Category == category {
			out = append(out, course)
		}
	}
	return out
}

// Categories returns each category once, in order of first appearance.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, course := range c.courses {
		if !seen[course.Category] {
			seen[course.Category] = true
			out = append(out, course.Category)
		}
	}
	return out
}

// Related returns the other courses sharing id's category.
func (c *Catalog) Related(id string) []models.Course {
	course, ok := c.Find(id)
	if !ok {
		return nil
	}
	out := make([]models.Course, 0)
	for _, other := range c.courses {
		if other.Category == course.Category && other.ID != id {
			out = append(out, other)
		}
	}
	return out
}
