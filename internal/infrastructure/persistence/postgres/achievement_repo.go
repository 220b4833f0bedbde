package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// ListByStudent implements achievement.Repository.
func (r *AchievementRepository) ListByStudent(ctx context.Context, studentID string) ([]achievement.Achievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, name, unlocked, unlocked_at, reward, created_at
		FROM achievements
		WHERE student_id = $1
		ORDER BY created_at, name
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []achievement.Achievement
	for rows.Next() {
		var a achievement.Achievement
		if err := rows.Scan(&a.ID, &a.StudentID, &a.Name, &a.Unlocked, &a.UnlockedAt, &a.Reward, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Unlock implements achievement.Repository. The upsert only touches a row
// that is still locked, so the affected row count tells whether this call
// made the transition even when several syncs race.
func (r *AchievementRepository) Unlock(ctx context.Context, studentID, name string, at time.Time) (bool, error) {
	result, err := r.conn.Exec(ctx, `
		INSERT INTO achievements (id, student_id, name, unlocked, unlocked_at, created_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (student_id, name) DO UPDATE
			SET unlocked = TRUE, unlocked_at = EXCLUDED.unlocked_at
			WHERE achievements.unlocked = FALSE
	`, shared.NewID(), studentID, name, at)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// SetReward implements achievement.Repository.
func (r *AchievementRepository) SetReward(ctx context.Context, studentID, name, reward string, now time.Time) (*achievement.Achievement, error) {
	var a achievement.Achievement
	err := r.conn.QueryRow(ctx, `
		INSERT INTO achievements (id, student_id, name, unlocked, reward, created_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		ON CONFLICT (student_id, name) DO UPDATE SET reward = EXCLUDED.reward
		RETURNING id, student_id, name, unlocked, unlocked_at, reward, created_at
	`, shared.NewID(), studentID, name, reward, now).Scan(
		&a.ID, &a.StudentID, &a.Name, &a.Unlocked, &a.UnlockedAt, &a.Reward, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set reward: %w", err)
	}
	return &a, nil
}
