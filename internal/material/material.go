// Package material stores teacher notes and resolves them to plain text for
// question generation.
package material

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ContentType is the storage form of a note.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentPDF  ContentType = "pdf"
)

// Note is a piece of course material uploaded for a class. For PDF notes
// Content holds the blob id.
type Note struct {
	ID          string      `json:"id"`
	ClassID     string      `json:"class_id"`
	TeacherID   string      `json:"teacher_id"`
	Title       string      `json:"title"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
	UploadedAt  time.Time   `json:"uploaded_at"`
}

// NoteInput is an upload request. Text is used for text notes, Data for PDFs.
type NoteInput struct {
	ClassID     string
	Title       string
	ContentType ContentType
	Text        string
	Data        []byte
}

func (in NoteInput) validate() error {
	if in.ClassID == "" {
		return fmt.Errorf("class id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required")
	}
	switch in.ContentType {
	case ContentText:
		if strings.TrimSpace(in.Text) == "" {
			return fmt.Errorf("text note is empty")
		}
	case ContentPDF:
		if len(in.Data) == 0 {
			return fmt.Errorf("pdf note is empty")
		}
	default:
		return fmt.Errorf("unsupported content type %q", in.ContentType)
	}
	return nil
}

// NoteStore persists notes. Missing notes yield assessment.ErrNotFound.
type NoteStore interface {
	CreateNote(ctx context.Context, n Note) error
	GetNote(ctx context.Context, id string) (*Note, error)
	ListNotes(ctx context.Context, classID string) ([]Note, error)
}

// BlobStore holds content-addressed bytes.
type BlobStore interface {
	// Put stores data and returns its id. Storing the same bytes twice
	// returns the same id.
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

// Extractor converts a document to plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}
