package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT ASSIGNMENTS COMMAND
// Extracts assignments from LMS screenshots with the language model, creates
// the classes it mentions and stores every assignment not already present.
// ══════════════════════════════════════════════════════════════════════════════

// MaxImportImages bounds the screenshots of one import.
const MaxImportImages = 10

// ImportAssignmentsCommand contains the uploaded screenshot URLs.
type ImportAssignmentsCommand struct {
	StudentID string
	ImageURLs []string
}

// Validate validates the command.
func (c ImportAssignmentsCommand) Validate() error {
	if _, err := shared.NewStudentID(c.StudentID); err != nil {
		return err
	}
	n := 0
	for _, u := range c.ImageURLs {
		if strings.TrimSpace(u) != "" {
			n++
		}
	}
	if n == 0 {
		return shared.NewDomainError("import", "Validate", shared.ErrEmptyValue, "at least one image url is required")
	}
	if n > MaxImportImages {
		return shared.NewDomainError("import", "Validate", shared.ErrInvalidInput, fmt.Sprintf("at most %d images per import", MaxImportImages))
	}
	return nil
}

// ImportAssignmentsResult summarizes an import.
type ImportAssignmentsResult struct {
	Imported          int
	ClassesCreated    int
	DuplicatesSkipped int
	Assignments       []*homework.Assignment
}

// ImportAssignmentsHandler handles ImportAssignmentsCommand.
type ImportAssignmentsHandler struct {
	assignments homework.Repository
	classes     homework.ClassRepository
	llm         shared.Completer
	model       string
	loc         *time.Location
	publisher   shared.EventPublisher
	now         timeutil.Clock
	log         *logger.Logger
}

// ImportAssignmentsDeps groups the handler's collaborators.
type ImportAssignmentsDeps struct {
	Assignments homework.Repository
	Classes     homework.ClassRepository
	LLM         shared.Completer

	// Model is the vision-capable model used for extraction. Empty uses the
	// completer's default.
	Model string

	// Location interprets extracted due dates. Nil means UTC.
	Location *time.Location

	Publisher shared.EventPublisher
	Now       timeutil.Clock
	Logger    *logger.Logger
}

// NewImportAssignmentsHandler creates a new ImportAssignmentsHandler.
func NewImportAssignmentsHandler(deps ImportAssignmentsDeps) *ImportAssignmentsHandler {
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &ImportAssignmentsHandler{
		assignments: deps.Assignments,
		classes:     deps.Classes,
		llm:         deps.LLM,
		model:       deps.Model,
		loc:         deps.Location,
		publisher:   deps.Publisher,
		now:         deps.Now,
		log:         deps.Logger.With(logger.Component("import_assignments")),
	}
}

// Handle executes the import. Classes are created before the assignments;
// the assignments themselves are stored all or nothing.
func (h *ImportAssignmentsHandler) Handle(ctx context.Context, cmd ImportAssignmentsCommand) (*ImportAssignmentsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(cmd.ImageURLs))
	for _, u := range cmd.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	h.log.Debug("importing assignments",
		logger.StudentID(cmd.StudentID),
		logger.Int("images", len(urls)))

	start := time.Now()
	completion, err := h.llm.Complete(ctx, shared.CompletionRequest{
		Model:      h.model,
		Prompt:     homework.ImportPrompt,
		Schema:     homework.ImportSchema(),
		SchemaName: homework.ImportSchemaName,
		ImageURLs:  urls,
	})
	if err != nil {
		return nil, fmt.Errorf("import_assignments: extraction failed: %w", err)
	}
	items, err := homework.ParseExtraction(completion)
	if err != nil {
		h.log.Warn("extraction unusable",
			logger.StudentID(cmd.StudentID),
			logger.Latency(time.Since(start)),
			logger.Err(err))
		return nil, err
	}

	classes, err := h.classes.ListByStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("import_assignments: failed to load classes: %w", err)
	}
	existing, err := h.assignments.ListByStudent(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("import_assignments: failed to load assignments: %w", err)
	}

	now := h.now()
	plan := homework.PlanImport(cmd.StudentID, items, classes, existing, now, h.loc)

	for _, c := range plan.Classes {
		if err := h.classes.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("import_assignments: failed to create class %q: %w", c.Name, err)
		}
	}
	if len(plan.Assignments) > 0 {
		if err := h.assignments.BulkCreate(ctx, plan.Assignments); err != nil {
			return nil, fmt.Errorf("import_assignments: failed to save assignments: %w", err)
		}
	}

	h.log.Info("assignments imported",
		logger.StudentID(cmd.StudentID),
		logger.Int("imported", len(plan.Assignments)),
		logger.Int("classes_created", len(plan.Classes)),
		logger.Int("duplicates", plan.Duplicates),
		logger.Latency(time.Since(start)))

	event := shared.NewAssignmentsImportedEvent(cmd.StudentID, len(plan.Assignments), len(plan.Classes), now)
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish import event", logger.Err(err))
	}

	return &ImportAssignmentsResult{
		Imported:          len(plan.Assignments),
		ClassesCreated:    len(plan.Classes),
		DuplicatesSkipped: plan.Duplicates,
		Assignments:       plan.Assignments,
	}, nil
}
