package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/ai"
	"github.com/tazhibayda/syncora/internal/domain"
)

func parseID(s string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(s)
	return id, err == nil
}

// Me godoc
// @Summary Current user
// @Tags user
// @Produce json
// @Success 200 {object} domain.Profile
// @Failure 401 {object} map[string]string
// @Router /api/user [get]
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c).Profile())
}

// ListEmails godoc
// @Summary Latest emails
// @Tags emails
// @Produce json
// @Success 200 {array} domain.Email
// @Router /api/emails [get]
func (h *Handler) ListEmails(c *gin.Context) {
	out, err := h.Data.ListEmails(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.dataError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, out)
}

type summaryResp struct {
	Summary          string                 `json:"summary"`
	ExtractedMeeting *domain.MeetingDetails `json:"extractedMeeting"`
	DetectedTasks    []string               `json:"detectedTasks"`
}

// SummarizeEmail godoc
// @Summary Summarize an email, extract meeting details and action items
// @Tags emails
// @Produce json
// @Param id path string true "email id"
// @Success 200 {object} summaryResp
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/emails/{id}/summarize [post]
func (h *Handler) SummarizeEmail(c *gin.Context) {
	uid := currentUser(c).ID
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Email not found"})
		return
	}
	e, err := h.Data.GetEmail(c.Request.Context(), uid, id)
	if err != nil {
		h.dataError(c, err, "Email not found")
		return
	}
	if h.AI == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI assistant is not configured"})
		return
	}

	var (
		summary string
		meeting *domain.MeetingDetails
		tasks   []string
	)
	err = WithSpan(c.Request.Context(), "ai.summarize", func(ctx context.Context) error {
		var err error
		summary, err = h.AI.Summarize(ctx, e.Content())
		if err != nil {
			return err
		}
		meeting = h.AI.ExtractMeeting(ctx, e.Content())
		tasks = h.AI.DetectTasks(ctx, e.Content())
		return nil
	})
	if err != nil {
		h.logger(c).Error("summarize", zap.String("email_id", id.Hex()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to summarize email"})
		return
	}
	if _, err := h.Data.UpdateEmailAnalysis(c.Request.Context(), uid, id, summary, meeting); err != nil {
		h.dataError(c, err, "Email not found")
		return
	}
	if tasks == nil {
		tasks = []string{}
	}
	c.JSON(http.StatusOK, summaryResp{Summary: summary, ExtractedMeeting: meeting, DetectedTasks: tasks})
}

// ListEvents godoc
// @Summary Calendar events
// @Tags calendar
// @Produce json
// @Success 200 {array} domain.CalendarEvent
// @Router /api/calendar/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	out, err := h.Data.ListEvents(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.dataError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, out)
}

// ListTasks godoc
// @Summary Tasks
// @Tags tasks
// @Produce json
// @Success 200 {array} domain.Task
// @Router /api/tasks [get]
func (h *Handler) ListTasks(c *gin.Context) {
	out, err := h.Data.ListTasks(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.dataError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, out)
}

type createTaskReq struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	DueDate     *time.Time      `json:"dueDate"`
	EmailID     string          `json:"emailId"`
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param payload body createTaskReq true "task"
// @Success 201 {object} domain.Task
// @Failure 400 {object} map[string]string
// @Router /api/tasks [post]
func (h *Handler) CreateTask(c *gin.Context) {
	var in createTaskReq
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be high|medium|low"})
		return
	}
	t := &domain.Task{
		UserID:      currentUser(c).ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
	if eid, ok := parseID(in.EmailID); ok {
		t.EmailID = &eid
	}
	if err := h.Data.CreateTask(c.Request.Context(), t); err != nil {
		h.dataError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, t)
}

type updateTaskReq struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *domain.Priority `json:"priority"`
	IsCompleted *bool            `json:"isCompleted"`
	DueDate     *time.Time       `json:"dueDate"`
}

// UpdateTask godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "task id"
// @Param payload body updateTaskReq true "fields to change"
// @Success 200 {object} domain.Task
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/tasks/{id} [patch]
func (h *Handler) UpdateTask(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	var in updateTaskReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if in.Priority != nil && !in.Priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be high|medium|low"})
		return
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}
	t, err := h.Data.UpdateTask(c.Request.Context(), currentUser(c).ID, id, domain.TaskPatch{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		IsCompleted: in.IsCompleted,
		DueDate:     in.DueDate,
	})
	if err != nil {
		h.dataError(c, err, "Task not found")
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "task id"
// @Success 200 {object} successResp
// @Failure 404 {object} map[string]string
// @Router /api/tasks/{id} [delete]
func (h *Handler) DeleteTask(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err := h.Data.DeleteTask(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.dataError(c, err, "Task not found")
		return
	}
	c.JSON(http.StatusOK, successResp{Success: true})
}

// ListNotifications godoc
// @Summary Notifications, newest first
// @Tags notifications
// @Produce json
// @Success 200 {array} domain.Notification
// @Router /api/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	out, err := h.Data.ListNotifications(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.dataError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, out)
}

// MarkNotificationRead godoc
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Param id path string true "notification id"
// @Success 200 {object} successResp
// @Failure 404 {object} map[string]string
// @Router /api/notifications/{id}/read [patch]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err := h.Data.MarkNotificationRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.dataError(c, err, "Notification not found")
		return
	}
	c.JSON(http.StatusOK, successResp{Success: true})
}

type chatReq struct {
	Message string `json:"message"`
}

type chatResp struct {
	Response string `json:"response"`
}

// Chat godoc
// @Summary Ask the assistant about your dashboard
// @Tags ai
// @Accept json
// @Produce json
// @Param payload body chatReq true "message"
// @Success 200 {object} chatResp
// @Failure 400 {object} map[string]string
// @Router /api/ai/chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var in chatReq
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message required"})
		return
	}
	if h.AI == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI assistant is not configured"})
		return
	}
	ctx, uid := c.Request.Context(), currentUser(c).ID
	emails, err := h.Data.ListEmails(ctx, uid)
	if err != nil {
		h.dataError(c, err, "")
		return
	}
	events, err := h.Data.ListEvents(ctx, uid)
	if err != nil {
		h.dataError(c, err, "")
		return
	}
	tasks, err := h.Data.ListTasks(ctx, uid)
	if err != nil {
		h.dataError(c, err, "")
		return
	}

	snap := &ai.ChatContext{EmailCount: len(emails)}
	for _, e := range emails {
		if e.Priority == domain.PriorityHigh {
			snap.HighPriorityEmails++
		}
	}
	now := time.Now()
	for _, ev := range events {
		if ev.StartTime.After(now) {
			snap.UpcomingMeetings++
		}
	}
	for _, t := range tasks {
		if !t.IsCompleted {
			snap.PendingTasks++
		}
	}

	var answer string
	_ = WithSpan(ctx, "ai.chat", func(ctx context.Context) error {
		answer = h.AI.Chat(ctx, in.Message, snap)
		return nil
	})
	c.JSON(http.StatusOK, chatResp{Response: answer})
}
