package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// GetByStudent implements profile.Repository. List columns are scanned
// untyped and normalized, so rows written by older clients as brace strings
// read the same as native arrays.
func (r *ProfileRepository) GetByStudent(ctx context.Context, studentID string) (*profile.LearningProfile, error) {
	var (
		p                                profile.LearningProfile
		strengths, areas, misconceptions any
	)
	err := r.conn.QueryRow(ctx, `
		SELECT id, student_id, learning_style_notes, strengths, areas_for_growth, misconceptions,
			   preferred_explanation_style, motivation_factors, tutor_handoff_notes,
			   version, created_at, updated_at
		FROM learning_profiles
		WHERE student_id = $1
	`, studentID).Scan(
		&p.ID,
		&p.StudentID,
		&p.LearningStyleNotes,
		&strengths,
		&areas,
		&misconceptions,
		&p.PreferredExplanationStyle,
		&p.MotivationFactors,
		&p.TutorHandoffNotes,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get learning profile: %w", err)
	}

	p.Strengths = profile.ToSequence(strengths)
	p.AreasForGrowth = profile.ToSequence(areas)
	p.Misconceptions = profile.ToSequence(misconceptions)
	return &p, nil
}

// Create implements profile.Repository.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.LearningProfile) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO learning_profiles (
			id, student_id, learning_style_notes, strengths, areas_for_growth, misconceptions,
			preferred_explanation_style, motivation_factors, tutor_handoff_notes,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID,
		p.StudentID,
		p.LearningStyleNotes,
		nonNil(p.Strengths),
		nonNil(p.AreasForGrowth),
		nonNil(p.Misconceptions),
		p.PreferredExplanationStyle,
		p.MotivationFactors,
		p.TutorHandoffNotes,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("profile", "Create", shared.ErrAlreadyExists, "learning profile already exists")
		}
		return fmt.Errorf("failed to create learning profile: %w", err)
	}
	return nil
}

// Save implements profile.Repository. The turn marker and the versioned
// update share a transaction, so a conflict also discards the marker.
func (r *ProfileRepository) Save(ctx context.Context, p *profile.LearningProfile, expectedVersion int64, turnID string) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if turnID != "" {
			tag, err := tx.Exec(ctx, `
				INSERT INTO profile_merge_turns (student_id, turn_id, merged_at)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING
			`, p.StudentID, turnID, p.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to record merge turn: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return shared.ErrTurnAlreadyMerged
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE learning_profiles SET
				learning_style_notes = $1,
				strengths = $2,
				areas_for_growth = $3,
				misconceptions = $4,
				preferred_explanation_style = $5,
				motivation_factors = $6,
				tutor_handoff_notes = $7,
				updated_at = $8,
				version = version + 1
			WHERE student_id = $9 AND version = $10
		`,
			p.LearningStyleNotes,
			nonNil(p.Strengths),
			nonNil(p.AreasForGrowth),
			nonNil(p.Misconceptions),
			p.PreferredExplanationStyle,
			p.MotivationFactors,
			p.TutorHandoffNotes,
			p.UpdatedAt,
			p.StudentID,
			expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to save learning profile: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM learning_profiles WHERE student_id = $1)`, p.StudentID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check learning profile: %w", err)
			}
			if !exists {
				return shared.ErrProfileNotFound
			}
			return shared.ErrProfileConflict
		}

		p.Version = expectedVersion + 1
		return nil
	})
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
