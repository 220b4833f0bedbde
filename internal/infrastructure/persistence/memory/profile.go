package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ProfileRow is the stored form of a learning profile. List columns hold
// whatever encoding the writer used: a []any as decoded from an array
// column, or a legacy "{a,b}" string.
type ProfileRow struct {
	ID                        string
	StudentID                 string
	LearningStyleNotes        string
	Strengths                 any
	AreasForGrowth            any
	Misconceptions            any
	PreferredExplanationStyle string
	MotivationFactors         string
	TutorHandoffNotes         string
	Version                   int64
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// ProfileStore implements profile.Repository with compare-and-swap saves.
type ProfileStore struct {
	mu    sync.Mutex
	rows  map[string]ProfileRow
	turns map[string]map[string]struct{}
}

// NewProfileStore creates an empty store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		rows:  make(map[string]ProfileRow),
		turns: make(map[string]map[string]struct{}),
	}
}

// Seed stores a raw row as is, bypassing version checks.
func (s *ProfileStore) Seed(row ProfileRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.StudentID] = row
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}

func rowFromProfile(p *profile.LearningProfile) ProfileRow {
	return ProfileRow{
		ID:                        p.ID,
		StudentID:                 p.StudentID,
		LearningStyleNotes:        p.LearningStyleNotes,
		Strengths:                 toAnySlice(p.Strengths),
		AreasForGrowth:            toAnySlice(p.AreasForGrowth),
		Misconceptions:            toAnySlice(p.Misconceptions),
		PreferredExplanationStyle: p.PreferredExplanationStyle,
		MotivationFactors:         p.MotivationFactors,
		TutorHandoffNotes:         p.TutorHandoffNotes,
		Version:                   p.Version,
		CreatedAt:                 p.CreatedAt,
		UpdatedAt:                 p.UpdatedAt,
	}
}

func (r ProfileRow) toProfile() *profile.LearningProfile {
	return &profile.LearningProfile{
		ID:                        r.ID,
		StudentID:                 r.StudentID,
		LearningStyleNotes:        r.LearningStyleNotes,
		Strengths:                 profile.ToSequence(r.Strengths),
		AreasForGrowth:            profile.ToSequence(r.AreasForGrowth),
		Misconceptions:            profile.ToSequence(r.Misconceptions),
		PreferredExplanationStyle: r.PreferredExplanationStyle,
		MotivationFactors:         r.MotivationFactors,
		TutorHandoffNotes:         r.TutorHandoffNotes,
		Version:                   r.Version,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
	}
}

// GetByStudent implements profile.Repository.
func (s *ProfileStore) GetByStudent(ctx context.Context, studentID string) (*profile.LearningProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[studentID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return row.toProfile(), nil
}

// Create implements profile.Repository.
func (s *ProfileStore) Create(ctx context.Context, p *profile.LearningProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[p.StudentID]; exists {
		return shared.NewDomainError("profile", "Create", shared.ErrAlreadyExists, "learning profile already exists")
	}
	s.rows[p.StudentID] = rowFromProfile(p)
	return nil
}

// Save implements profile.Repository.
func (s *ProfileStore) Save(ctx context.Context, p *profile.LearningProfile, expectedVersion int64, turnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[p.StudentID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	if turnID != "" {
		if _, seen := s.turns[p.StudentID][turnID]; seen {
			return shared.ErrTurnAlreadyMerged
		}
	}
	if row.Version != expectedVersion {
		return shared.ErrProfileConflict
	}

	p.Version = expectedVersion + 1
	s.rows[p.StudentID] = rowFromProfile(p)
	if turnID != "" {
		if s.turns[p.StudentID] == nil {
			s.turns[p.StudentID] = make(map[string]struct{})
		}
		s.turns[p.StudentID][turnID] = struct{}{}
	}
	return nil
}
