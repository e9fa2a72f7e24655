package roster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

// FileDirectory serves classes loaded once from a directory of YAML files,
// one class per file:
//
//	id: form1-maths
//	teacher_id: t-100
//	subject: Mathematics
//	students: [s-1, s-2]
type FileDirectory struct {
	rootDir string
	classes map[string]Class
}

// NewFileDirectory loads every *.yaml / *.yml file under rootDir.
func NewFileDirectory(rootDir string) (*FileDirectory, error) {
	d := &FileDirectory{
		rootDir: rootDir,
		classes: make(map[string]Class),
	}
	if err := d.loadAll(); err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}

	slog.Info("roster loaded", "dir", rootDir, "classes", len(d.classes))
	return d, nil
}

func (d *FileDirectory) Class(_ context.Context, classID string) (Class, error) {
	c, ok := d.classes[classID]
	if !ok {
		return Class{}, fmt.Errorf("class %s: %w", classID, assessment.ErrNotFound)
	}
	return clone(c), nil
}

// Classes returns every loaded class ordered by id.
func (d *FileDirectory) Classes() []Class {
	out := make([]Class, 0, len(d.classes))
	for _, c := range d.classes {
		out = append(out, clone(c))
	}
	slices.SortFunc(out, func(a, b Class) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (d *FileDirectory) loadAll() error {
	return filepath.WalkDir(d.rootDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return d.loadClass(path)
	})
}

func (d *FileDirectory) loadClass(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var c Class
	if err := yaml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if prev, ok := d.classes[c.ID]; ok {
		return fmt.Errorf("%s: class %s already defined (teacher %s)", path, c.ID, prev.TeacherID)
	}

	d.classes[c.ID] = c
	return nil
}
