package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// MeetingDetails is what the assistant extracts from an email body.
type MeetingDetails struct {
	Date      string   `bson:"date,omitempty"      json:"date,omitempty"`
	Time      string   `bson:"time,omitempty"      json:"time,omitempty"`
	Location  string   `bson:"location,omitempty"  json:"location,omitempty"`
	Attendees []string `bson:"attendees,omitempty" json:"attendees,omitempty"`
}

func (m *MeetingDetails) Empty() bool {
	return m == nil || (m.Date == "" && m.Time == "" && m.Location == "" && len(m.Attendees) == 0)
}

type Email struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"               json:"id"`
	UserID           primitive.ObjectID `bson:"user_id"                     json:"userId"`
	MessageID        string             `bson:"message_id"                  json:"messageId"`
	ThreadID         string             `bson:"thread_id,omitempty"         json:"threadId,omitempty"`
	From             string             `bson:"from"                        json:"from"`
	Subject          string             `bson:"subject"                     json:"subject"`
	Snippet          string             `bson:"snippet,omitempty"           json:"snippet,omitempty"`
	Body             string             `bson:"body,omitempty"              json:"body,omitempty"`
	Priority         Priority           `bson:"priority"                    json:"priority"`
	IsRead           bool               `bson:"is_read"                     json:"isRead"`
	ReceivedAt       time.Time          `bson:"received_at"                 json:"receivedAt"`
	Summary          string             `bson:"summary,omitempty"           json:"summary,omitempty"`
	ExtractedMeeting *MeetingDetails    `bson:"extracted_meeting,omitempty" json:"extractedMeeting,omitempty"`
	CreatedAt        time.Time          `bson:"created_at"                  json:"createdAt"`
}

// Content is the text handed to the assistant.
func (e *Email) Content() string {
	if e.Body != "" {
		return e.Body
	}
	return e.Snippet
}

type CalendarEvent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"         json:"id"`
	UserID      primitive.ObjectID `bson:"user_id"               json:"userId"`
	ExternalID  string             `bson:"external_id,omitempty" json:"externalId,omitempty"`
	Title       string             `bson:"title"                 json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	StartTime   time.Time          `bson:"start_time"            json:"startTime"`
	EndTime     time.Time          `bson:"end_time"              json:"endTime"`
	Location    string             `bson:"location,omitempty"    json:"location,omitempty"`
	MeetingLink string             `bson:"meeting_link,omitempty" json:"meetingLink,omitempty"`
	Attendees   []string           `bson:"attendees,omitempty"   json:"attendees,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"            json:"createdAt"`
}

type Task struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"         json:"id"`
	UserID      primitive.ObjectID  `bson:"user_id"               json:"userId"`
	EmailID     *primitive.ObjectID `bson:"email_id,omitempty"    json:"emailId,omitempty"`
	Title       string              `bson:"title"                 json:"title"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Priority    Priority            `bson:"priority"              json:"priority"`
	IsCompleted bool                `bson:"is_completed"          json:"isCompleted"`
	DueDate     *time.Time          `bson:"due_date,omitempty"    json:"dueDate,omitempty"`
	CreatedAt   time.Time           `bson:"created_at"            json:"createdAt"`
}

// TaskPatch follows the same nil-means-untouched rule as UserPatch.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	IsCompleted *bool
	DueDate     *time.Time
}

func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
}

type NotificationType string

const (
	NotificationInfo     NotificationType = "info"
	NotificationSecurity NotificationType = "security"
	NotificationMeeting  NotificationType = "meeting"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"      json:"id"`
	UserID    primitive.ObjectID `bson:"user_id"            json:"userId"`
	Type      NotificationType   `bson:"type"               json:"type"`
	Title     string             `bson:"title"              json:"title"`
	Message   string             `bson:"message"            json:"message"`
	IsRead    bool               `bson:"is_read"            json:"isRead"`
	Metadata  map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time          `bson:"created_at"         json:"createdAt"`
}
