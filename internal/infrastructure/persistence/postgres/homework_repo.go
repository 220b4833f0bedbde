package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentRepository implements homework.Repository for PostgreSQL.
type AssignmentRepository struct {
	conn *Connection
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(conn *Connection) *AssignmentRepository {
	return &AssignmentRepository{conn: conn}
}

const assignmentColumns = `id, student_id, class_id, title, subject, description, due_date,
	status, priority, source, created_at, updated_at`

var sortColumns = map[homework.SortField]string{
	homework.SortCreatedAt: "created_at",
	homework.SortUpdatedAt: "updated_at",
	homework.SortDueDate:   "due_date",
	homework.SortTitle:     "lower(title)",
	homework.SortPriority:  "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END",
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func insertAssignment(ctx context.Context, q Querier, a *homework.Assignment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID,
		a.StudentID,
		nullIfEmpty(a.ClassID),
		a.Title,
		a.Subject,
		a.Description,
		a.DueDate,
		string(a.Status),
		string(a.Priority),
		a.Source,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("homework", "Create", shared.ErrAlreadyExists, "assignment already exists")
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// Create implements homework.Repository.
func (r *AssignmentRepository) Create(ctx context.Context, a *homework.Assignment) error {
	return insertAssignment(ctx, r.conn, a)
}

// BulkCreate implements homework.Repository.
func (r *AssignmentRepository) BulkCreate(ctx context.Context, items []*homework.Assignment) error {
	if len(items) == 0 {
		return nil
	}
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, a := range items {
			if err := insertAssignment(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID implements homework.Repository.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*homework.Assignment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// Update implements homework.Repository.
func (r *AssignmentRepository) Update(ctx context.Context, a *homework.Assignment) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE assignments SET
			class_id = $1,
			title = $2,
			subject = $3,
			description = $4,
			due_date = $5,
			status = $6,
			priority = $7,
			updated_at = $8
		WHERE id = $9
	`,
		nullIfEmpty(a.ClassID),
		a.Title,
		a.Subject,
		a.Description,
		a.DueDate,
		string(a.Status),
		string(a.Priority),
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrAssignmentNotFound
	}
	return nil
}

// List implements homework.Repository.
func (r *AssignmentRepository) List(ctx context.Context, f homework.Filter) ([]*homework.Assignment, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.StudentID != "" {
		add("student_id", f.StudentID)
	}
	if f.ClassID != "" {
		add("class_id", f.ClassID)
	}
	if f.Subject != "" {
		add("subject", f.Subject)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Priority != "" {
		add("priority", string(f.Priority))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + assignmentColumns + ` FROM assignments`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	sort := f.Sort
	if sort.Field == "" {
		sort = homework.Sort{Field: homework.SortCreatedAt, Desc: true}
	}
	column, ok := sortColumns[sort.Field]
	if !ok {
		return nil, shared.ErrInvalidSortField
	}
	direction := "ASC"
	if sort.Desc {
		direction = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s NULLS LAST, id ASC", column, direction)

	args = append(args, shared.ClampLimit(f.Limit))
	fmt.Fprintf(&b, " LIMIT $%d", len(args))

	return r.query(ctx, b.String(), args...)
}

// ListByStudent implements homework.Repository.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentID string) ([]*homework.Assignment, error) {
	return r.query(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE student_id = $1`, studentID)
}

// ListStudentIDs implements homework.StudentLister.
func (r *AssignmentRepository) ListStudentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT DISTINCT student_id::text FROM assignments ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan student id: %w", err)
	}
	return ids, nil
}

// Delete implements homework.Repository.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrAssignmentNotFound
	}
	return nil
}

func (r *AssignmentRepository) query(ctx context.Context, sql string, args ...any) ([]*homework.Assignment, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []*homework.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (*homework.Assignment, error) {
	var (
		a                homework.Assignment
		classID          *string
		status, priority string
	)
	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&classID,
		&a.Title,
		&a.Subject,
		&a.Description,
		&a.DueDate,
		&status,
		&priority,
		&a.Source,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if classID != nil {
		a.ClassID = *classID
	}
	a.Status = homework.Status(status)
	a.Priority = homework.Priority(priority)
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ClassRepository implements homework.ClassRepository for PostgreSQL.
type ClassRepository struct {
	conn *Connection
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(conn *Connection) *ClassRepository {
	return &ClassRepository{conn: conn}
}

// Create implements homework.ClassRepository.
func (r *ClassRepository) Create(ctx context.Context, c *homework.Class) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO classes (id, student_id, name, subject, teacher_name, teacher_email, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		c.ID,
		c.StudentID,
		c.Name,
		c.Subject,
		c.TeacherName,
		c.TeacherEmail,
		c.Color,
		c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrClassNameTaken
		}
		return fmt.Errorf("failed to create class: %w", err)
	}
	return nil
}

const classColumns = `id, student_id, name, subject, teacher_name, teacher_email, color, created_at`

func scanClass(row pgx.Row) (*homework.Class, error) {
	var c homework.Class
	if err := row.Scan(&c.ID, &c.StudentID, &c.Name, &c.Subject, &c.TeacherName, &c.TeacherEmail, &c.Color, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID implements homework.ClassRepository.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*homework.Class, error) {
	c, err := scanClass(r.conn.QueryRow(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	return c, nil
}

// Update implements homework.ClassRepository.
func (r *ClassRepository) Update(ctx context.Context, c *homework.Class) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE classes SET
			name = $1,
			subject = $2,
			teacher_name = $3,
			teacher_email = $4,
			color = $5
		WHERE id = $6
	`,
		c.Name,
		c.Subject,
		c.TeacherName,
		c.TeacherEmail,
		c.Color,
		c.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrClassNameTaken
		}
		return fmt.Errorf("failed to update class: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrClassNotFound
	}
	return nil
}

// Delete implements homework.ClassRepository. The assignments foreign key
// is ON DELETE SET NULL, so linked assignments are unlinked in the same
// statement.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete class: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrClassNotFound
	}
	return nil
}

// ListByStudent implements homework.ClassRepository.
func (r *ClassRepository) ListByStudent(ctx context.Context, studentID string) ([]*homework.Class, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+classColumns+`
		FROM classes
		WHERE student_id = $1
		ORDER BY lower(name), id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	var out []*homework.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
