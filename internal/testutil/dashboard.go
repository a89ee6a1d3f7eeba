package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tazhibayda/syncora/internal/domain"
)

// Dashboard is an in-memory version of the repo's dashboard collections.
type Dashboard struct {
	mu            sync.Mutex
	Emails        []domain.Email
	Events        []domain.CalendarEvent
	Tasks         []domain.Task
	Notifications []domain.Notification
}

func NewDashboard() *Dashboard { return &Dashboard{} }

func owned[T any](items []T, uid primitive.ObjectID, owner func(T) primitive.ObjectID) []T {
	out := make([]T, 0)
	for _, it := range items {
		if owner(it) == uid {
			out = append(out, it)
		}
	}
	return out
}

func (d *Dashboard) ListEmails(_ context.Context, uid primitive.ObjectID) ([]domain.Email, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := owned(d.Emails, uid, func(e domain.Email) primitive.ObjectID { return e.UserID })
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (d *Dashboard) GetEmail(_ context.Context, uid, id primitive.ObjectID) (*domain.Email, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.Emails {
		if e.ID == id && e.UserID == uid {
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *Dashboard) CreateEmail(_ context.Context, e *domain.Email) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, x := range d.Emails {
		if x.UserID == e.UserID && x.MessageID == e.MessageID {
			return domain.ErrConflict
		}
	}
	e.ID = primitive.NewObjectID()
	e.CreatedAt = time.Now().UTC()
	d.Emails = append(d.Emails, *e)
	return nil
}

func (d *Dashboard) UpdateEmailAnalysis(_ context.Context, uid, id primitive.ObjectID, summary string, m *domain.MeetingDetails) (*domain.Email, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.Emails {
		if d.Emails[i].ID == id && d.Emails[i].UserID == uid {
			d.Emails[i].Summary = summary
			d.Emails[i].ExtractedMeeting = nil
			if !m.Empty() {
				d.Emails[i].ExtractedMeeting = m
			}
			e := d.Emails[i]
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *Dashboard) ListEvents(_ context.Context, uid primitive.ObjectID) ([]domain.CalendarEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := owned(d.Events, uid, func(e domain.CalendarEvent) primitive.ObjectID { return e.UserID })
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (d *Dashboard) CreateEvent(_ context.Context, ev *domain.CalendarEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ev.ID = primitive.NewObjectID()
	d.Events = append(d.Events, *ev)
	return nil
}

func (d *Dashboard) ListTasks(_ context.Context, uid primitive.ObjectID) ([]domain.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return owned(d.Tasks, uid, func(t domain.Task) primitive.ObjectID { return t.UserID }), nil
}

func (d *Dashboard) GetTask(_ context.Context, uid, id primitive.ObjectID) (*domain.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.Tasks {
		if t.ID == id && t.UserID == uid {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *Dashboard) CreateTask(_ context.Context, t *domain.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t.ID = primitive.NewObjectID()
	t.CreatedAt = time.Now().UTC()
	d.Tasks = append(d.Tasks, *t)
	return nil
}

func (d *Dashboard) UpdateTask(_ context.Context, uid, id primitive.ObjectID, p domain.TaskPatch) (*domain.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.Tasks {
		if d.Tasks[i].ID == id && d.Tasks[i].UserID == uid {
			p.Apply(&d.Tasks[i])
			t := d.Tasks[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *Dashboard) DeleteTask(_ context.Context, uid, id primitive.ObjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, t := range d.Tasks {
		if t.ID == id && t.UserID == uid {
			d.Tasks = append(d.Tasks[:i], d.Tasks[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (d *Dashboard) ListNotifications(_ context.Context, uid primitive.ObjectID) ([]domain.Notification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return owned(d.Notifications, uid, func(n domain.Notification) primitive.ObjectID { return n.UserID }), nil
}

func (d *Dashboard) CreateNotification(_ context.Context, n *domain.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	d.Notifications = append(d.Notifications, *n)
	return nil
}

func (d *Dashboard) MarkNotificationRead(_ context.Context, uid, id primitive.ObjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.Notifications {
		if d.Notifications[i].ID == id && d.Notifications[i].UserID == uid {
			d.Notifications[i].IsRead = true
			return nil
		}
	}
	return domain.ErrNotFound
}

// NotificationCount is safe to poll from tests while a consumer is running.
func (d *Dashboard) NotificationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Notifications)
}
