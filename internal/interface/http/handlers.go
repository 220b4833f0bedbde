package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gpadva81/crystal-edu-track-now/internal/application/command"
	"github.com/gpadva81/crystal-edu-track-now/internal/application/query"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/homework"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
	"github.com/gpadva81/crystal-edu-track-now/internal/domain/tutor"
	"github.com/gpadva81/crystal-edu-track-now/internal/interface/http/handlers"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

type createAssignmentRequest struct {
	ClassID     string `json:"class_id"`
	Title       string `json:"title" validate:"required,notblank,max=300"`
	Subject     string `json:"subject" validate:"max=100"`
	Description string `json:"description" validate:"max=5000"`

	// DueDate is RFC 3339 or YYYY-MM-DD.
	DueDate  string `json:"due_date"`
	Status   string `json:"status" validate:"omitempty,oneof=todo in_progress completed"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// updateAssignmentRequest is a partial edit. Absent fields are unchanged.
type updateAssignmentRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=300"`
	Subject     *string `json:"subject" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	ClassID     *string `json:"class_id" validate:"omitempty,max=100"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`

	// DueDate is RFC 3339 or YYYY-MM-DD. An empty string clears it.
	DueDate *string `json:"due_date"`
}

func (req updateAssignmentRequest) patch() (homework.Patch, error) {
	p := homework.Patch{
		Title:       req.Title,
		Subject:     req.Subject,
		Description: req.Description,
		ClassID:     req.ClassID,
	}
	if req.Priority != nil {
		pr := homework.Priority(*req.Priority)
		p.Priority = &pr
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return homework.Patch{}, err
		}
		p.DueDate = due
		p.ClearDueDate = due == nil
	}
	return p, nil
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress completed"`
}

type createClassRequest struct {
	Name         string `json:"name" validate:"required,notblank,max=200"`
	Subject      string `json:"subject" validate:"max=100"`
	TeacherName  string `json:"teacher_name" validate:"max=200"`
	TeacherEmail string `json:"teacher_email" validate:"omitempty,email"`
	Color        string `json:"color" validate:"omitempty,oneof=blue green purple orange pink red"`
}

type updateClassRequest struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=200"`
	Subject      *string `json:"subject" validate:"omitempty,max=100"`
	TeacherName  *string `json:"teacher_name" validate:"omitempty,max=200"`
	TeacherEmail *string `json:"teacher_email" validate:"omitempty,max=320"`
	Color        *string `json:"color" validate:"omitempty,oneof=blue green purple orange pink red"`
}

type setRewardRequest struct {
	Reward string `json:"reward" validate:"max=500"`
}

type startSessionRequest struct {
	Title        string `json:"title" validate:"max=300"`
	Subject      string `json:"subject" validate:"max=100"`
	AssignmentID string `json:"assignment_id"`
	PersonaID    string `json:"persona_id"`
	Style        string `json:"style" validate:"omitempty,oneof=socratic hints direct"`
	Model        string `json:"model"`
	Grade        string `json:"grade" validate:"max=50"`
}

type tutorTurnRequest struct {
	Message string `json:"message" validate:"required,notblank,max=8000"`
	Grade   string `json:"grade" validate:"max=50"`
	TurnID  string `json:"turn_id" validate:"omitempty,max=100"`
}

type importRequest struct {
	ImageURLs []string `json:"image_urls" validate:"required,min=1,max=10,dive,url"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

type syncResponse struct {
	Progress *query.ProgressDTO `json:"progress"`
	Unlocked []string           `json:"unlocked"`
	SyncedAt time.Time          `json:"synced_at"`
}

type assignmentResponse struct {
	Assignment query.AssignmentDTO `json:"assignment"`
	Previous   string              `json:"previous_status,omitempty"`
	Unlocked   []string            `json:"unlocked,omitempty"`
}

type sessionResponse struct {
	Conversation query.ConversationDTO `json:"conversation"`
	Opening      tutor.Message         `json:"opening"`
}

type turnResponse struct {
	TurnID         string   `json:"turn_id"`
	Answer         string   `json:"answer"`
	Suggestions    []string `json:"suggestions"`
	Audience       string   `json:"suggestions_for"`
	Structured     bool     `json:"structured"`
	ProfileUpdated bool     `json:"profile_updated"`
	ProfileVersion int64    `json:"profile_version,omitempty"`
	Replayed       bool     `json:"replayed"`
}

type importResponse struct {
	Imported          int                   `json:"imported"`
	ClassesCreated    int                   `json:"classes_created"`
	DuplicatesSkipped int                   `json:"duplicates_skipped"`
	Assignments       []query.AssignmentDTO `json:"assignments"`
}

type personaResponse struct {
	Personas []tutor.Persona `json:"personas"`
	Styles   []styleInfo     `json:"styles"`
}

type styleInfo struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Audience string `json:"suggestions_for"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	handlers.WriteJSON(w, code, status)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{
		StudentID: chi.URLParam(r, "studentID"),
		SkipCache: r.URL.Query().Get("fresh") == "true",
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, dto)
}

func (s *Server) handleSyncAchievements(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if _, err := shared.NewStudentID(studentID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.deps.SyncAchievements.Handle(r.Context(), command.SyncAchievementsCommand{StudentID: studentID})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, toSyncResponse(studentID, res))
}

func (s *Server) handleSetReward(w http.ResponseWriter, r *http.Request) {
	var req setRewardRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	a, err := s.deps.SetReward.Handle(r.Context(), command.SetRewardCommand{
		StudentID: chi.URLParam(r, "studentID"),
		Badge:     chi.URLParam(r, "name"),
		Reward:    req.Reward,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, a)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := s.deps.ListAssignments.Handle(r.Context(), query.ListAssignmentsQuery{
		StudentID: chi.URLParam(r, "studentID"),
		ClassID:   q.Get("class_id"),
		Subject:   q.Get("subject"),
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		Sort:      q.Get("sort"),
		Limit:     limit,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSONWithMeta(w, http.StatusOK, list, &handlers.ResponseMeta{Timestamp: time.Now(), TotalCount: len(list)})
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.deps.CreateAssignment.Handle(r.Context(), command.CreateAssignmentCommand{
		StudentID:   chi.URLParam(r, "studentID"),
		ClassID:     req.ClassID,
		Title:       req.Title,
		Subject:     req.Subject,
		Description: req.Description,
		DueDate:     due,
		Status:      req.Status,
		Priority:    req.Priority,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	resp := assignmentResponse{Assignment: query.ToAssignmentDTO(res.Assignment, time.Now())}
	if res.Sync != nil {
		resp.Unlocked = res.Sync.Unlocked
	}
	handlers.WriteJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req updateAssignmentRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.deps.UpdateAssignment.Handle(r.Context(), command.UpdateAssignmentCommand{
		AssignmentID: chi.URLParam(r, "assignmentID"),
		Patch:        patch,
	})
	if err != nil {
		if res == nil {
			s.writeErr(w, r, err)
			return
		}
		logger.FromContext(r.Context()).Warn("achievement sync failed after assignment edit",
			logger.AssignmentID(res.Assignment.ID), logger.Err(err))
	}
	resp := assignmentResponse{Assignment: query.ToAssignmentDTO(res.Assignment, time.Now())}
	if res.Sync != nil {
		resp.Unlocked = res.Sync.Unlocked
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.deps.UpdateAssignmentStatus.Handle(r.Context(), command.UpdateAssignmentStatusCommand{
		AssignmentID: chi.URLParam(r, "assignmentID"),
		Status:       req.Status,
	})
	if err != nil {
		// The status change is kept even when the follow-up sync fails.
		if res == nil {
			s.writeErr(w, r, err)
			return
		}
		logger.FromContext(r.Context()).Warn("achievement sync failed after status change",
			logger.AssignmentID(res.Assignment.ID), logger.Err(err))
	}
	resp := assignmentResponse{
		Assignment: query.ToAssignmentDTO(res.Assignment, time.Now()),
		Previous:   string(res.Previous),
	}
	if res.Sync != nil {
		resp.Unlocked = res.Sync.Unlocked
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	err := s.deps.DeleteAssignment.Handle(r.Context(), command.DeleteAssignmentCommand{
		AssignmentID: chi.URLParam(r, "assignmentID"),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportAssignments(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.deps.ImportAssignments.Handle(r.Context(), command.ImportAssignmentsCommand{
		StudentID: chi.URLParam(r, "studentID"),
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	now := time.Now()
	resp := importResponse{
		Imported:          res.Imported,
		ClassesCreated:    res.ClassesCreated,
		DuplicatesSkipped: res.DuplicatesSkipped,
		Assignments:       make([]query.AssignmentDTO, 0, len(res.Assignments)),
	}
	for _, a := range res.Assignments {
		resp.Assignments = append(resp.Assignments, query.ToAssignmentDTO(a, now))
	}
	handlers.WriteJSON(w, http.StatusCreated, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.ListClasses.Handle(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSONWithMeta(w, http.StatusOK, list, &handlers.ResponseMeta{Timestamp: time.Now(), TotalCount: len(list)})
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	c, err := s.deps.CreateClass.Handle(r.Context(), command.CreateClassCommand{
		StudentID:    chi.URLParam(r, "studentID"),
		Name:         req.Name,
		Subject:      req.Subject,
		TeacherName:  req.TeacherName,
		TeacherEmail: req.TeacherEmail,
		Color:        req.Color,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, query.ToClassDTO(c))
}

func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	var req updateClassRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	c, err := s.deps.UpdateClass.Handle(r.Context(), command.UpdateClassCommand{
		ClassID: chi.URLParam(r, "classID"),
		Patch: homework.ClassPatch{
			Name:         req.Name,
			Subject:      req.Subject,
			TeacherName:  req.TeacherName,
			TeacherEmail: req.TeacherEmail,
			Color:        req.Color,
		},
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, query.ToClassDTO(c))
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	err := s.deps.DeleteClass.Handle(r.Context(), command.DeleteClassCommand{
		ClassID: chi.URLParam(r, "classID"),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE & TUTOR
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.GetProfile.Handle(r.Context(), query.GetProfileQuery{StudentID: chi.URLParam(r, "studentID")})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	resp := personaResponse{Personas: tutor.Personas()}
	for _, st := range tutor.Styles() {
		resp.Styles = append(resp.Styles, styleInfo{
			Key:      st.Key(),
			Label:    st.Label(),
			Audience: string(tutor.Audience(st)),
		})
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if _, err := shared.NewStudentID(studentID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.deps.ListConversations.Handle(r.Context(), studentID, limit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSONWithMeta(w, http.StatusOK, list, &handlers.ResponseMeta{Timestamp: time.Now(), TotalCount: len(list)})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.GetConversation.Handle(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	err := s.deps.DeleteConversation.Handle(r.Context(), command.DeleteConversationCommand{
		ConversationID: chi.URLParam(r, "conversationID"),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartTutorSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.deps.StartTutorSession.Handle(r.Context(), command.StartTutorSessionCommand{
		StudentID:    chi.URLParam(r, "studentID"),
		Title:        req.Title,
		Subject:      req.Subject,
		AssignmentID: req.AssignmentID,
		Grade:        req.Grade,
		Choice:       tutor.Choice{Model: req.Model, PersonaID: req.PersonaID, Style: req.Style},
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, sessionResponse{
		Conversation: query.ToConversationDTO(res.Conversation, true),
		Opening:      res.Opening,
	})
}

func (s *Server) handleTutorTurn(w http.ResponseWriter, r *http.Request) {
	var req tutorTurnRequest
	if err := s.validator.Decode(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	turnID := req.TurnID
	if turnID == "" {
		turnID = r.Header.Get("Idempotency-Key")
	}
	res, err := s.deps.TutorTurn.Handle(r.Context(), command.TutorTurnCommand{
		ConversationID: chi.URLParam(r, "conversationID"),
		Message:        req.Message,
		Grade:          req.Grade,
		TurnID:         turnID,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	resp := turnResponse{
		TurnID:         res.TurnID,
		Answer:         res.Reply.Answer,
		Suggestions:    res.Reply.Suggestions,
		Audience:       string(res.Reply.Audience),
		Structured:     res.Reply.Structured,
		ProfileUpdated: res.ProfileUpdated,
		Replayed:       res.Replayed,
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	if res.Profile != nil {
		resp.ProfileVersion = res.Profile.Version
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func toSyncResponse(studentID string, res *command.SyncAchievementsResult) syncResponse {
	unlocked := res.Unlocked
	if unlocked == nil {
		unlocked = []string{}
	}
	return syncResponse{
		Progress: query.ToProgressDTO(studentID, res.Progress),
		Unlocked: unlocked,
		SyncedAt: res.SyncedAt,
	}
}

func parseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, &handlers.RequestError{
			Message: "invalid request",
			Fields:  map[string]string{"due_date": "must be RFC 3339 or YYYY-MM-DD"},
		}
	}
	return &t, nil
}

// writeErr maps application errors onto HTTP responses.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()

	var reqErr *handlers.RequestError
	if errors.As(err, &reqErr) {
		handlers.WriteAPIError(w, http.StatusBadRequest, &handlers.APIError{
			Code:    "invalid_request",
			Message: reqErr.Message,
			Fields:  reqErr.Fields,
		})
		return
	}

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("path", r.URL.Path), logger.Err(err))
		if status == http.StatusInternalServerError {
			msg = "An unexpected error occurred"
		}
	} else {
		log.Debug("request rejected", logger.String("path", r.URL.Path), logger.Err(err))
	}
	handlers.WriteError(w, status, code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrImportUnstructured), errors.Is(err, shared.ErrImportNoAssignments):
		return http.StatusUnprocessableEntity, "import_failed"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err), errors.Is(err, shared.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case shared.IsExternalService(err):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}
