package material

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/events"
	"github.com/p-n-ai/pai-assess/internal/roster"
)

// Service uploads notes and resolves them to generation-ready text.
type Service struct {
	notes     NoteStore
	blobs     BlobStore
	extractor Extractor
	roster    roster.Directory
	events    events.Logger
	now       func() time.Time
}

// NewService wires the material resolver. logger may be nil.
func NewService(notes NoteStore, blobs BlobStore, extractor Extractor, dir roster.Directory, logger events.Logger) *Service {
	return &Service{
		notes:     notes,
		blobs:     blobs,
		extractor: extractor,
		roster:    dir,
		events:    logger,
		now:       time.Now,
	}
}

// Upload stores a note for a class the teacher owns.
func (s *Service) Upload(ctx context.Context, teacher assessment.Identity, in NoteInput) (Note, error) {
	if err := teacher.RequireTeacher(); err != nil {
		return Note{}, err
	}
	if err := s.requireOwner(ctx, teacher, in.ClassID); err != nil {
		return Note{}, err
	}
	if err := in.validate(); err != nil {
		return Note{}, fmt.Errorf("%w: %w", assessment.ErrInvalidInput, err)
	}

	n := Note{
		ID:          assessment.NewID(),
		ClassID:     in.ClassID,
		TeacherID:   teacher.UserID,
		Title:       strings.TrimSpace(in.Title),
		ContentType: in.ContentType,
		Content:     in.Text,
		UploadedAt:  s.now().UTC(),
	}
	if in.ContentType == ContentPDF {
		id, err := s.blobs.Put(ctx, in.Data)
		if err != nil {
			return Note{}, fmt.Errorf("store pdf: %w", err)
		}
		n.Content = id
	}

	if err := s.notes.CreateNote(ctx, n); err != nil {
		return Note{}, err
	}

	slog.Info("note uploaded",
		"note_id", n.ID,
		"class_id", n.ClassID,
		"content_type", string(n.ContentType),
	)
	events.Emit(ctx, s.events, events.Event{
		UserID:    teacher.UserID,
		EventType: events.TypeNoteUploaded,
		Data: map[string]any{
			"note_id":      n.ID,
			"class_id":     n.ClassID,
			"content_type": string(n.ContentType),
		},
	})
	return n, nil
}

// List returns the notes of a class the teacher owns.
func (s *Service) List(ctx context.Context, teacher assessment.Identity, classID string) ([]Note, error) {
	if err := teacher.RequireTeacher(); err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, teacher, classID); err != nil {
		return nil, err
	}
	return s.notes.ListNotes(ctx, classID)
}

// Resolve loads refs in order, extracts PDFs and joins everything with blank
// lines. Every failure is reported as assessment.ErrMaterialUnavailable.
func (s *Service) Resolve(ctx context.Context, classID string, refs []string) (string, error) {
	if len(refs) == 0 {
		return "", fmt.Errorf("no material refs: %w", assessment.ErrMaterialUnavailable)
	}

	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		text, err := s.resolveOne(ctx, classID, ref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("note %s: %w: %v", ref, assessment.ErrMaterialUnavailable, err)
		}
		parts = append(parts, strings.TrimSpace(text))
	}

	text := strings.TrimSpace(norm.NFC.String(strings.Join(parts, "\n\n")))
	if text == "" {
		return "", fmt.Errorf("material is empty: %w", assessment.ErrMaterialUnavailable)
	}
	return text, nil
}

func (s *Service) resolveOne(ctx context.Context, classID, ref string) (string, error) {
	n, err := s.notes.GetNote(ctx, ref)
	if err != nil {
		return "", err
	}
	if n.ClassID != classID {
		return "", errors.New("note belongs to another class")
	}

	switch n.ContentType {
	case ContentText:
		return n.Content, nil
	case ContentPDF:
		data, err := s.blobs.Get(ctx, n.Content)
		if err != nil {
			return "", err
		}
		return s.extractor.Extract(ctx, data)
	default:
		return "", fmt.Errorf("unsupported content type %q", n.ContentType)
	}
}

func (s *Service) requireOwner(ctx context.Context, teacher assessment.Identity, classID string) error {
	class, err := s.roster.Class(ctx, classID)
	if errors.Is(err, assessment.ErrNotFound) {
		return fmt.Errorf("class %s: %w", classID, assessment.ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	if !class.OwnedBy(teacher.UserID) {
		return fmt.Errorf("class %s is not owned by %s: %w", classID, teacher.UserID, assessment.ErrUnauthorized)
	}
	return nil
}
