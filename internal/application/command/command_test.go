package command_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/application/command"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/achievement"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/profile"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/persistence/memory"
	"github.com/gpadva81/crystal-edu-track-now/pkg/timeutil"
)

var (
	ctx = context.Background()
	now = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []shared.CompletionRequest
	reply    shared.Completion
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, req shared.CompletionRequest) (shared.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeCompleter) last() shared.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fixture struct {
	studentID     string
	assignments   *memory.HomeworkStore
	classes       *memory.ClassStore
	achievements  *memory.AchievementStore
	profiles      *memory.ProfileStore
	conversations *memory.ConversationStore
	preferences   *memory.PreferenceStore
	merger        *profile.Merger
	llm           *fakeCompleter
	events        *recordingPublisher
	sync          *command.SyncAchievementsHandler
}

func newFixture() *fixture {
	hw := memory.NewHomeworkStore()
	f := &fixture{
		studentID:     uuid.NewString(),
		assignments:   hw,
		classes:       memory.NewClassStore(hw),
		achievements:  memory.NewAchievementStore(),
		profiles:      memory.NewProfileStore(),
		conversations: memory.NewConversationStore(),
		preferences:   memory.NewPreferenceStore(),
		llm:           &fakeCompleter{},
		events:        &recordingPublisher{},
	}
	f.merger = profile.NewMerger(f.profiles, profile.MergerConfig{Now: timeutil.Fixed(now)}, f.events, nil)
	f.sync = command.NewSyncAchievementsHandler(f.assignments, f.achievements, achievement.DefaultCatalog(), f.events, timeutil.Fixed(now), nil)
	return f
}

func (f *fixture) addCompleted(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		a, err := homework.NewAssignment(f.studentID, "task", homework.PriorityMedium, now.Add(-time.Hour))
		require.NoError(t, err)
		_, err = a.SetStatus(homework.StatusCompleted, now.Add(-time.Minute))
		require.NoError(t, err)
		require.NoError(t, f.assignments.Create(ctx, a))
	}
}

func badge(p achievement.Progress, name string) achievement.BadgeState {
	for _, b := range p.Badges {
		if b.Badge.Name == name {
			return b
		}
	}
	return achievement.BadgeState{}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestUpdateAssignmentStatus_UnlocksOnFifthCompletion(t *testing.T) {
	f := newFixture()
	f.addCompleted(t, 4)

	a, err := homework.NewAssignment(f.studentID, "fifth", homework.PriorityHigh, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.assignments.Create(ctx, a))

	h := command.NewUpdateAssignmentStatusHandler(f.assignments, f.sync, f.events, timeutil.Fixed(now), nil)
	res, err := h.Handle(ctx, command.UpdateAssignmentStatusCommand{AssignmentID: a.ID, Status: "completed"})
	require.NoError(t, err)

	assert.Equal(t, homework.StatusTodo, res.Previous)
	require.NotNil(t, res.Assignment.UpdatedAt)
	assert.Equal(t, now, *res.Assignment.UpdatedAt)
	assert.Equal(t, []string{"Beginner"}, res.Sync.Unlocked)
	assert.Equal(t, 50, res.Sync.Progress.Points)

	beginner := badge(res.Sync.Progress, "Beginner")
	assert.True(t, beginner.Unlocked)
	require.NotNil(t, beginner.UnlockedAt)
	assert.Equal(t, now, *beginner.UnlockedAt)

	assert.Len(t, f.events.ofType(shared.EventAssignmentStatusChanged), 1)
	assert.Len(t, f.events.ofType(shared.EventAchievementUnlocked), 1)

	// Reconciling again is a no-op.
	again, err := f.sync.Handle(ctx, command.SyncAchievementsCommand{StudentID: f.studentID})
	require.NoError(t, err)
	assert.Empty(t, again.Unlocked)
	assert.Len(t, f.events.ofType(shared.EventAchievementUnlocked), 1)
}

func TestUpdateAssignmentStatus_Validation(t *testing.T) {
	f := newFixture()
	h := command.NewUpdateAssignmentStatusHandler(f.assignments, f.sync, f.events, timeutil.Fixed(now), nil)

	_, err := h.Handle(ctx, command.UpdateAssignmentStatusCommand{AssignmentID: "x", Status: "done"})
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = h.Handle(ctx, command.UpdateAssignmentStatusCommand{AssignmentID: "missing", Status: "todo"})
	assert.True(t, shared.IsNotFound(err))
}

func TestSyncAchievements_ConcurrentSessionsUnlockOnce(t *testing.T) {
	f := newFixture()
	f.addCompleted(t, 20)

	var wg sync.WaitGroup
	unlocked := make(chan string, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.sync.Handle(ctx, command.SyncAchievementsCommand{StudentID: f.studentID})
			if assert.NoError(t, err) {
				for _, name := range res.Unlocked {
					unlocked <- name
				}
			}
		}()
	}
	wg.Wait()
	close(unlocked)

	var names []string
	for n := range unlocked {
		names = append(names, n)
	}
	assert.ElementsMatch(t, []string{"Beginner", "Dedicated"}, names)
	assert.Len(t, f.events.ofType(shared.EventAchievementUnlocked), 2)
}

func TestSyncAchievements_StreakUsesClockZone(t *testing.T) {
	f := newFixture()
	zone := time.FixedZone("UTC-5", -5*3600)
	day1 := time.Date(2024, 3, 11, 21, 0, 0, 0, zone)
	day2 := time.Date(2024, 3, 12, 10, 0, 0, 0, zone)
	for _, at := range []time.Time{day1, day2} {
		a, err := homework.NewAssignment(f.studentID, "task", homework.PriorityMedium, at.Add(-time.Hour))
		require.NoError(t, err)
		_, err = a.SetStatus(homework.StatusCompleted, at.UTC())
		require.NoError(t, err)
		require.NoError(t, f.assignments.Create(ctx, a))
	}
	at := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		clock timeutil.Clock
		want  int
	}{
		{"student zone", timeutil.Fixed(at.In(zone)), 2},
		{"utc", timeutil.Fixed(at), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := command.NewSyncAchievementsHandler(f.assignments, f.achievements, achievement.DefaultCatalog(), nil, tt.clock, nil)
			res, err := h.Handle(ctx, command.SyncAchievementsCommand{StudentID: f.studentID})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Progress.Streak)
		})
	}
}

func TestSetReward(t *testing.T) {
	f := newFixture()
	h := command.NewSetRewardHandler(f.achievements, achievement.DefaultCatalog(), f.events, timeutil.Fixed(now), nil)

	_, err := h.Handle(ctx, command.SetRewardCommand{StudentID: f.studentID, Badge: "Legend", Reward: "bike"})
	assert.ErrorIs(t, err, shared.ErrUnknownBadge)

	a, err := h.Handle(ctx, command.SetRewardCommand{StudentID: f.studentID, Badge: "Beginner", Reward: " ice cream "})
	require.NoError(t, err)
	assert.False(t, a.Unlocked)
	assert.Equal(t, "ice cream", a.Reward)
	assert.Len(t, f.events.ofType(shared.EventRewardSet), 1)

	// The reward survives the unlock and rides on the unlock event.
	f.addCompleted(t, 5)
	res, err := f.sync.Handle(ctx, command.SyncAchievementsCommand{StudentID: f.studentID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Beginner"}, res.Unlocked)
	assert.Equal(t, "ice cream", badge(res.Progress, "Beginner").Reward)

	events := f.events.ofType(shared.EventAchievementUnlocked)
	require.Len(t, events, 1)
	assert.Equal(t, "ice cream", events[0].(shared.AchievementUnlockedEvent).Reward)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateAndDeleteAssignment(t *testing.T) {
	f := newFixture()
	create := command.NewCreateAssignmentHandler(f.assignments, f.sync, f.events, timeutil.Fixed(now), nil)
	del := command.NewDeleteAssignmentHandler(f.assignments, f.events, timeutil.Fixed(now), nil)

	_, err := create.Handle(ctx, command.CreateAssignmentCommand{StudentID: f.studentID, Title: "x", Priority: "urgent"})
	assert.ErrorIs(t, err, shared.ErrInvalidPriority)

	_, err = create.Handle(ctx, command.CreateAssignmentCommand{StudentID: "not-a-uuid", Title: "x"})
	assert.Error(t, err)

	res, err := create.Handle(ctx, command.CreateAssignmentCommand{StudentID: f.studentID, Title: "Essay", Subject: "English"})
	require.NoError(t, err)
	assert.Equal(t, homework.PriorityMedium, res.Assignment.Priority)
	assert.Equal(t, homework.StatusTodo, res.Assignment.Status)
	assert.Nil(t, res.Sync)

	done, err := create.Handle(ctx, command.CreateAssignmentCommand{StudentID: f.studentID, Title: "Quiz", Status: "completed"})
	require.NoError(t, err)
	require.NotNil(t, done.Sync)
	assert.Equal(t, 1, done.Sync.Progress.Completed)

	assert.Len(t, f.events.ofType(shared.EventAssignmentCreated), 2)

	require.NoError(t, del.Handle(ctx, command.DeleteAssignmentCommand{AssignmentID: res.Assignment.ID}))
	assert.Len(t, f.events.ofType(shared.EventAssignmentDeleted), 1)

	err = del.Handle(ctx, command.DeleteAssignmentCommand{AssignmentID: res.Assignment.ID})
	assert.True(t, shared.IsNotFound(err))
}

func strPtr(s string) *string { return &s }

func TestUpdateAssignment(t *testing.T) {
	f := newFixture()
	h := command.NewUpdateAssignmentHandler(f.assignments, f.classes, f.sync, f.events, timeutil.Fixed(now), nil)

	due := now.Add(48 * time.Hour)
	a, err := homework.NewAssignment(f.studentID, "Essay", homework.PriorityLow, now.Add(-time.Hour))
	require.NoError(t, err)
	a.Subject = "English"
	a.DueDate = &due
	require.NoError(t, f.assignments.Create(ctx, a))

	high := homework.PriorityHigh
	res, err := h.Handle(ctx, command.UpdateAssignmentCommand{
		AssignmentID: a.ID,
		Patch:        homework.Patch{Title: strPtr(" Persuasive essay "), Priority: &high, ClearDueDate: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Persuasive essay", res.Assignment.Title)
	assert.Equal(t, homework.PriorityHigh, res.Assignment.Priority)
	assert.Equal(t, "English", res.Assignment.Subject)
	assert.Nil(t, res.Assignment.DueDate)
	assert.Equal(t, now, *res.Assignment.UpdatedAt)
	assert.Nil(t, res.Sync, "todo assignments need no sync")

	stored, err := f.assignments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persuasive essay", stored.Title)
	assert.Len(t, f.events.ofType(shared.EventAssignmentUpdated), 1)

	// Rejected edits leave the stored assignment alone.
	_, err = h.Handle(ctx, command.UpdateAssignmentCommand{AssignmentID: a.ID, Patch: homework.Patch{Title: strPtr("  ")}})
	assert.ErrorIs(t, err, shared.ErrEmptyTitle)
	bad := homework.Priority("urgent")
	_, err = h.Handle(ctx, command.UpdateAssignmentCommand{AssignmentID: a.ID, Patch: homework.Patch{Priority: &bad}})
	assert.ErrorIs(t, err, shared.ErrInvalidPriority)
	_, err = h.Handle(ctx, command.UpdateAssignmentCommand{AssignmentID: a.ID})
	assert.ErrorIs(t, err, shared.ErrEmptyPatch)
	_, err = h.Handle(ctx, command.UpdateAssignmentCommand{AssignmentID: "missing", Patch: homework.Patch{Title: strPtr("x")}})
	assert.True(t, shared.IsNotFound(err))

	stored, err = f.assignments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, homework.PriorityHigh, stored.Priority)
	assert.Len(t, f.events.ofType(shared.EventAssignmentUpdated), 1)
}

func TestUpdateAssignment_CompletedResyncs(t *testing.T) {
	f := newFixture()
	f.addCompleted(t, 1)
	h := command.NewUpdateAssignmentHandler(f.assignments, f.classes, f.sync, f.events, timeutil.Fixed(now), nil)

	list, err := f.assignments.ListByStudent(ctx, f.studentID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	res, err := h.Handle(ctx, command.UpdateAssignmentCommand{
		AssignmentID: list[0].ID,
		Patch:        homework.Patch{Description: strPtr("graded")},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Sync)
	assert.Equal(t, 1, res.Sync.Progress.Completed)
	assert.Equal(t, homework.StatusCompleted, res.Assignment.Status)
}

func TestUpdateAssignment_ClassMustBelongToStudent(t *testing.T) {
	f := newFixture()
	h := command.NewUpdateAssignmentHandler(f.assignments, f.classes, f.sync, f.events, timeutil.Fixed(now), nil)

	a, err := homework.NewAssignment(f.studentID, "Lab", homework.PriorityMedium, now)
	require.NoError(t, err)
	require.NoError(t, f.assignments.Create(ctx, a))

	mine, err := homework.NewClass(f.studentID, "Biology", now)
	require.NoError(t, err)
	require.NoError(t, f.classes.Create(ctx, mine))
	theirs, err := homework.NewClass(uuid.NewString(), "Chemistry", now)
	require.NoError(t, err)
	require.NoError(t, f.classes.Create(ctx, theirs))

	_, err = h.Handle(ctx, command.UpdateAssignmentCommand{AssignmentID: a.ID, Patch: homework.Patch{ClassID: &theirs.ID}})
	assert.ErrorIs(t, err, shared.ErrClassNotFound)

	res, err := h.Handle(ctx, command.UpdateAssignmentCommand{AssignmentID: a.ID, Patch: homework.Patch{ClassID: &mine.ID}})
	require.NoError(t, err)
	assert.Equal(t, mine.ID, res.Assignment.ClassID)

	res, err = h.Handle(ctx, command.UpdateAssignmentCommand{AssignmentID: a.ID, Patch: homework.Patch{ClassID: strPtr("")}})
	require.NoError(t, err)
	assert.Empty(t, res.Assignment.ClassID)
}

func TestClassCommands_DeleteKeepsAssignments(t *testing.T) {
	f := newFixture()
	create := command.NewCreateClassHandler(f.classes, f.events, timeutil.Fixed(now), nil)
	update := command.NewUpdateClassHandler(f.classes, f.events, timeutil.Fixed(now), nil)
	del := command.NewDeleteClassHandler(f.classes, f.events, timeutil.Fixed(now), nil)

	_, err := create.Handle(ctx, command.CreateClassCommand{StudentID: f.studentID, Name: "  "})
	assert.ErrorIs(t, err, shared.ErrEmptyClassName)
	_, err = create.Handle(ctx, command.CreateClassCommand{StudentID: f.studentID, Name: "Art", Color: "teal"})
	assert.ErrorIs(t, err, shared.ErrInvalidClassColor)

	bio, err := create.Handle(ctx, command.CreateClassCommand{StudentID: f.studentID, Name: " Biology ", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, "Biology", bio.Name)
	assert.Equal(t, homework.DefaultClassSubject, bio.Subject)
	assert.Equal(t, "red", bio.Color)

	_, err = create.Handle(ctx, command.CreateClassCommand{StudentID: f.studentID, Name: "BIOLOGY"})
	assert.ErrorIs(t, err, shared.ErrClassNameTaken)

	// Another student may reuse the name.
	_, err = create.Handle(ctx, command.CreateClassCommand{StudentID: uuid.NewString(), Name: "Biology"})
	require.NoError(t, err)

	art, err := create.Handle(ctx, command.CreateClassCommand{StudentID: f.studentID, Name: "Art"})
	require.NoError(t, err)
	_, err = update.Handle(ctx, command.UpdateClassCommand{ClassID: art.ID, Patch: homework.ClassPatch{Name: strPtr("biology")}})
	assert.ErrorIs(t, err, shared.ErrClassNameTaken)

	edited, err := update.Handle(ctx, command.UpdateClassCommand{ClassID: bio.ID, Patch: homework.ClassPatch{
		Subject:     strPtr("Science"),
		TeacherName: strPtr("Ms. Frizzle"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "Biology", edited.Name)
	assert.Equal(t, "Science", edited.Subject)
	assert.Equal(t, "red", edited.Color)

	linked, err := homework.NewAssignment(f.studentID, "Lab report", homework.PriorityHigh, now)
	require.NoError(t, err)
	linked.ClassID = bio.ID
	linked.Subject = "Science"
	require.NoError(t, f.assignments.Create(ctx, linked))
	other, err := homework.NewAssignment(f.studentID, "Sketch", homework.PriorityLow, now)
	require.NoError(t, err)
	other.ClassID = art.ID
	require.NoError(t, f.assignments.Create(ctx, other))

	require.NoError(t, del.Handle(ctx, command.DeleteClassCommand{ClassID: bio.ID}))
	assert.True(t, shared.IsNotFound(del.Handle(ctx, command.DeleteClassCommand{ClassID: bio.ID})))

	kept, err := f.assignments.GetByID(ctx, linked.ID)
	require.NoError(t, err)
	assert.Empty(t, kept.ClassID)
	assert.Equal(t, "Lab report", kept.Title)
	assert.Equal(t, "Science", kept.Subject)
	assert.Equal(t, homework.PriorityHigh, kept.Priority)

	untouched, err := f.assignments.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, art.ID, untouched.ClassID)

	classes, err := f.classes.ListByStudent(ctx, f.studentID)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "Art", classes[0].Name)

	assert.Len(t, f.events.ofType(shared.EventClassCreated), 3)
	assert.Len(t, f.events.ofType(shared.EventClassUpdated), 1)
	assert.Len(t, f.events.ofType(shared.EventClassDeleted), 1)
}

func TestImportAssignments(t *testing.T) {
	f := newFixture()
	h := command.NewImportAssignmentsHandler(command.ImportAssignmentsDeps{
		Assignments: f.assignments,
		Classes:     f.classes,
		LLM:         f.llm,
		Model:       "gpt-4o",
		Publisher:   f.events,
		Now:         timeutil.Fixed(now),
	})
	cmd := command.ImportAssignmentsCommand{StudentID: f.studentID, ImageURLs: []string{"https://files.example/1.png", " "}}

	_, err := h.Handle(ctx, command.ImportAssignmentsCommand{StudentID: f.studentID})
	assert.True(t, shared.IsValidation(err))

	f.llm.reply = shared.Completion{Text: "I see a screenshot."}
	_, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrImportUnstructured)

	f.llm.reply = shared.Completion{Structured: map[string]any{
		"assignments": []any{
			map[string]any{"title": "Lab report", "class_name": "Biology", "due_date": "2026-03-18"},
			map[string]any{"title": "Chapter 3", "class_name": "biology", "priority": "low"},
		},
	}}
	res, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.ClassesCreated)

	req := f.llm.last()
	assert.Equal(t, []string{"https://files.example/1.png"}, req.ImageURLs)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.NotNil(t, req.Schema)

	classes, err := f.classes.ListByStudent(ctx, f.studentID)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	for _, a := range res.Assignments {
		assert.Equal(t, classes[0].ID, a.ClassID)
	}

	// Importing the same screenshots again skips everything.
	res, err = h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	assert.Zero(t, res.ClassesCreated)
	assert.Equal(t, 2, res.DuplicatesSkipped)
	assert.Len(t, f.events.ofType(shared.EventAssignmentsImported), 2)
}

// ══════════════════════════════════════════════════════════════════════════════
// TUTORING
// ══════════════════════════════════════════════════════════════════════════════

func (f *fixture) startSession(t *testing.T, choice tutor.Choice) *command.StartTutorSessionResult {
	t.Helper()
	h := command.NewStartTutorSessionHandler(command.StartTutorSessionDeps{
		Conversations: f.conversations,
		Preferences:   f.preferences,
		Merger:        f.merger,
		LLM:           f.llm,
		DefaultModel:  "gpt-4o-mini",
		Publisher:     f.events,
		Now:           timeutil.Fixed(now),
	})
	f.llm.reply = shared.Completion{Text: "Hi! What are we working on?"}
	res, err := h.Handle(ctx, command.StartTutorSessionCommand{
		StudentID: f.studentID,
		Title:     "Fractions",
		Subject:   "Math",
		Grade:     "5th",
		Choice:    choice,
	})
	require.NoError(t, err)
	return res
}

func TestStartTutorSession_RemembersChoice(t *testing.T) {
	f := newFixture()

	first := f.startSession(t, tutor.Choice{PersonaID: "maria", Style: "hints"})
	assert.Equal(t, "gpt-4o-mini", first.Config.Model)
	assert.Equal(t, "Sarah Miller", first.Config.Persona.Name)
	assert.Equal(t, tutor.Hints{}, first.Config.Style)

	stored, err := f.conversations.GetByID(ctx, first.Conversation.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, tutor.RoleAssistant, stored.Messages()[0].Role)
	assert.Contains(t, f.llm.last().Prompt, "Fractions")

	// Only the model is given; persona and style come from the last session.
	second := f.startSession(t, tutor.Choice{Model: "gpt-4o"})
	assert.Equal(t, "gpt-4o", second.Config.Model)
	assert.Equal(t, "maria", second.Config.Persona.ID)
	assert.Equal(t, tutor.Hints{}, second.Config.Style)
	assert.Equal(t, "gpt-4o", f.llm.last().Model)

	assert.Len(t, f.events.ofType(shared.EventTutorSessionStarted), 2)
}

func TestStartTutorSession_Failures(t *testing.T) {
	f := newFixture()
	h := command.NewStartTutorSessionHandler(command.StartTutorSessionDeps{
		Conversations: f.conversations,
		Preferences:   f.preferences,
		Merger:        f.merger,
		LLM:           f.llm,
	})

	_, err := h.Handle(ctx, command.StartTutorSessionCommand{StudentID: f.studentID, Choice: tutor.Choice{Style: "lecture"}})
	assert.ErrorIs(t, err, shared.ErrUnknownStyle)

	f.llm.err = shared.ErrLLMUnavailable
	_, err = h.Handle(ctx, command.StartTutorSessionCommand{StudentID: f.studentID})
	assert.ErrorIs(t, err, shared.ErrLLMUnavailable)

	recent, err := f.conversations.ListRecent(ctx, f.studentID, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	_, remembered, err := f.preferences.Recall(ctx, f.studentID)
	require.NoError(t, err)
	assert.False(t, remembered)
}

func TestTutorTurn_MergesStructuredObservations(t *testing.T) {
	f := newFixture()
	session := f.startSession(t, tutor.Choice{PersonaID: "maria", Style: "socratic"})
	h := command.NewTutorTurnHandler(f.conversations, f.merger, f.llm, f.events, timeutil.Fixed(now), nil)

	f.llm.reply = shared.Completion{
		Text: "{...}",
		Structured: map[string]any{
			"answer":      "What do both fractions need before you add them?",
			"suggestions": []any{"Ask about denominators"},
			"profile_updates": map[string]any{
				"strength_observed": "visual models",
				"handoff_note":      "responds well to pizza analogies",
			},
		},
	}
	res, err := h.Handle(ctx, command.TutorTurnCommand{ConversationID: session.Conversation.ID, Message: "how do I add 1/2 and 1/3?", TurnID: "turn-1"})
	require.NoError(t, err)

	assert.True(t, res.Reply.Structured)
	assert.True(t, res.ProfileUpdated)
	assert.Equal(t, tutor.AudienceTutor, res.Reply.Audience)
	assert.Equal(t, []string{"visual models"}, res.Profile.Strengths)
	assert.True(t, strings.HasSuffix(res.Profile.TutorHandoffNotes, "[Sarah Miller]: responds well to pizza analogies"))
	require.Len(t, res.Messages, 3)

	req := f.llm.last()
	assert.Equal(t, tutor.TurnSchemaName, req.SchemaName)
	assert.Contains(t, req.Prompt, "how do I add 1/2 and 1/3?")

	// A retry of the same turn replays the stored reply.
	calls := len(f.llm.requests)
	res, err = h.Handle(ctx, command.TutorTurnCommand{ConversationID: session.Conversation.ID, Message: "how do I add 1/2 and 1/3?", TurnID: "turn-1"})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.False(t, res.ProfileUpdated)
	assert.Equal(t, "What do both fractions need before you add them?", res.Reply.Answer)
	assert.Equal(t, []string{"Ask about denominators"}, res.Reply.Suggestions)
	assert.Equal(t, []string{"visual models"}, res.Profile.Strengths)
	assert.Len(t, f.llm.requests, calls)

	stored, err := f.conversations.GetByID(ctx, session.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Len())

	// The next turn's prompt reads the merged profile.
	f.llm.reply = shared.Completion{Text: "Keep going!"}
	res, err = h.Handle(ctx, command.TutorTurnCommand{ConversationID: session.Conversation.ID, Message: "ok"})
	require.NoError(t, err)
	assert.False(t, res.Reply.Structured)
	assert.Equal(t, "Keep going!", res.Reply.Answer)
	assert.Contains(t, f.llm.last().Prompt, "visual models")

	assert.Len(t, f.events.ofType(shared.EventTutorTurnCompleted), 2)
}

func TestTutorTurn_CompletionFailureStoresNothing(t *testing.T) {
	f := newFixture()
	session := f.startSession(t, tutor.Choice{})
	h := command.NewTutorTurnHandler(f.conversations, f.merger, f.llm, f.events, timeutil.Fixed(now), nil)

	f.llm.err = errors.New("connection reset")
	_, err := h.Handle(ctx, command.TutorTurnCommand{ConversationID: session.Conversation.ID, Message: "help"})
	require.Error(t, err)

	stored, err := f.conversations.GetByID(ctx, session.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Len())

	_, err = h.Handle(ctx, command.TutorTurnCommand{ConversationID: session.Conversation.ID, Message: "  "})
	assert.ErrorIs(t, err, shared.ErrEmptyMessage)

	_, err = h.Handle(ctx, command.TutorTurnCommand{ConversationID: uuid.NewString(), Message: "hi"})
	assert.True(t, shared.IsNotFound(err))
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture()
	session := f.startSession(t, tutor.Choice{})
	h := command.NewDeleteConversationHandler(f.conversations, f.events, timeutil.Fixed(now), nil)

	require.NoError(t, h.Handle(ctx, command.DeleteConversationCommand{ConversationID: session.Conversation.ID}))

	_, err := f.conversations.GetByID(ctx, session.Conversation.ID)
	assert.ErrorIs(t, err, shared.ErrConversationNotFound)

	err = h.Handle(ctx, command.DeleteConversationCommand{ConversationID: session.Conversation.ID})
	assert.True(t, shared.IsNotFound(err))
	assert.True(t, shared.IsValidation(h.Handle(ctx, command.DeleteConversationCommand{})))

	events := f.events.ofType(shared.EventTutorSessionDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, f.studentID, events[0].AggregateID())
}
