// Package mirror copies study documents to an object store so other clients
// can read study configuration without database access.
package mirror

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// StudyDocument is the mirrored view of a study.
type StudyDocument struct {
	StudyID         uuid.UUID `json:"study_id"`
	UserID          uuid.UUID `json:"user_id"`
	Title           string    `json:"title"`
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Fields          []string  `json:"fields"`
	TableName       string    `json:"table_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// Mirror stores and removes study documents.
type Mirror interface {
	PutStudy(ctx context.Context, doc StudyDocument) error
	DeleteStudy(ctx context.Context, studyID uuid.UUID) error
}

// Noop is used when no bucket is configured.
type Noop struct{}

func (Noop) PutStudy(context.Context, StudyDocument) error { return nil }

func (Noop) DeleteStudy(context.Context, uuid.UUID) error { return nil }

// Key is the object key for a study document.
func Key(studyID uuid.UUID) string {
	return "studies/" + studyID.String() + ".json"
}

func logf(format string, args ...any) {
	log.Printf("[mirror] "+format, args...)
}
