package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Chunk is the metadata row of one indexed text chunk. Its ID is also the
// point id in the vector index.
type Chunk struct {
	ID           string
	ChapterID    int
	SectionID    string
	SectionTitle string
	ChunkIndex   int
	Text         string
	CharCount    int
	TokenCount   int
	PreviewText  string
	CreatedAt    time.Time
}

// UserProfile is the stored learner background of one user.
type UserProfile struct {
	UserID             string
	SoftwareExperience string // JSON object stored as text
	RoboticsExperience string
	HardwareAccess     string // JSON array stored as text
	LearningGoals      string // JSON array stored as text
	ProfileHash        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PersonalizedChapter locates a cached personalized chapter in the blob store.
type PersonalizedChapter struct {
	UserID           string
	ChapterID        int
	ProfileHash      string
	StoragePath      string
	GenerationTimeMs int64
	CreatedAt        time.Time
}

// TranslatedChapter is a cached translation stored inline.
type TranslatedChapter struct {
	UserID            string
	ChapterID         int
	TargetLanguage    string
	TranslatedContent string
	GenerationTimeMs  int64
	CreatedAt         time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
