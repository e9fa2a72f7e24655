// Package roster answers which teacher owns a class and which students are
// enrolled in it.
package roster

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

// Class is a teacher-owned group of students.
type Class struct {
	ID         string   `yaml:"id"`
	TeacherID  string   `yaml:"teacher_id"`
	Subject    string   `yaml:"subject"`
	StudentIDs []string `yaml:"students"`
}

// Validate checks the required fields and rejects duplicate members.
func (c Class) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("class id is required")
	}
	if c.TeacherID == "" {
		return fmt.Errorf("class %s: teacher_id is required", c.ID)
	}
	seen := make(map[string]bool, len(c.StudentIDs))
	for _, s := range c.StudentIDs {
		if s == "" {
			return fmt.Errorf("class %s: empty student id", c.ID)
		}
		if seen[s] {
			return fmt.Errorf("class %s: duplicate student %s", c.ID, s)
		}
		seen[s] = true
	}
	return nil
}

// OwnedBy reports whether teacherID owns the class.
func (c Class) OwnedBy(teacherID string) bool {
	return teacherID != "" && c.TeacherID == teacherID
}

// Directory resolves classes. Unknown classes yield assessment.ErrNotFound.
type Directory interface {
	Class(ctx context.Context, classID string) (Class, error)
}

// Writer stores classes, replacing any existing membership.
type Writer interface {
	PutClass(ctx context.Context, c Class) error
}

// Sync writes every class to w, stopping at the first failure.
func Sync(ctx context.Context, w Writer, classes []Class) error {
	for _, c := range classes {
		if err := w.PutClass(ctx, c); err != nil {
			return fmt.Errorf("sync class %s: %w", c.ID, err)
		}
	}
	return nil
}

// MemoryDirectory is an in-memory Directory.
type MemoryDirectory struct {
	classes map[string]Class
	mu      sync.RWMutex
}

// NewMemoryDirectory creates a directory holding classes.
func NewMemoryDirectory(classes ...Class) *MemoryDirectory {
	d := &MemoryDirectory{classes: make(map[string]Class)}
	for _, c := range classes {
		d.classes[c.ID] = clone(c)
	}
	return d
}

// PutClass adds or replaces a class.
func (d *MemoryDirectory) PutClass(_ context.Context, c Class) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classes[c.ID] = clone(c)
	return nil
}

func (d *MemoryDirectory) Class(_ context.Context, classID string) (Class, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.classes[classID]
	if !ok {
		return Class{}, fmt.Errorf("class %s: %w", classID, assessment.ErrNotFound)
	}
	return clone(c), nil
}

func clone(c Class) Class {
	c.StudentIDs = slices.Clone(c.StudentIDs)
	slices.Sort(c.StudentIDs)
	return c
}
