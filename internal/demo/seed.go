// Package demo fills a new account with sample emails, tasks and a welcome
// notification.
package demo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/domain"
)

type Store interface {
	CreateEmail(ctx context.Context, e *domain.Email) error
	CreateTask(ctx context.Context, t *domain.Task) error
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

type Prioritizer interface {
	Priority(ctx context.Context, subject, snippet string) domain.Priority
}

type Seeder struct {
	Store    Store
	Priority Prioritizer
	Log      *zap.Logger
	now      func() time.Time
}

func NewSeeder(store Store, p Prioritizer, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{Store: store, Priority: p, Log: log, now: time.Now}
}

func (s *Seeder) emails(userID primitive.ObjectID) []domain.Email {
	now := s.now().UTC()
	return []domain.Email{
		{
			UserID:    userID,
			MessageID: "demo1",
			ThreadID:  "thread1",
			From:      "client@example.com",
			Subject:   "URGENT: Project Deadline Tomorrow",
			Snippet:   "We need to finalize the project deliverables by EOD tomorrow. Please send the latest updates ASAP.",
			Body: "Hi,\n\nWe need to finalize the project deliverables by end of day tomorrow. " +
				"This is critical for the client presentation. Please send the latest updates as soon as possible.\n\n" +
				"Thanks,\nClient Team",
			ReceivedAt: now.Add(-2 * time.Hour),
		},
		{
			UserID:    userID,
			MessageID: "demo2",
			ThreadID:  "thread2",
			From:      "team@company.com",
			Subject:   "Meeting Tomorrow: Product Review",
			Snippet:   "Join us tomorrow at 2 PM for the quarterly product review. We'll discuss the roadmap and priorities.",
			Body: "Hello Team,\n\nLet's schedule a meeting tomorrow at 2:00 PM to review our product progress.\n\n" +
				"Meeting Details:\n- Date: Tomorrow\n- Time: 2:00 PM - 3:00 PM\n" +
				"- Location: Conference Room B / Zoom link: https://zoom.us/j/123456\n" +
				"- Attendees: Product Team, Marketing Team\n\nLooking forward to it!\n\nBest,\nProduct Team",
			ReceivedAt: now.Add(-5 * time.Hour),
		},
		{
			UserID:     userID,
			MessageID:  "demo3",
			ThreadID:   "thread3",
			From:       "newsletter@tech.com",
			Subject:    "Weekly Tech Newsletter",
			Snippet:    "Check out the latest technology trends and updates from this week.",
			Body:       "This week in tech: AI advancements, new framework releases, and industry news.",
			ReceivedAt: now.Add(-24 * time.Hour),
		},
	}
}

func (s *Seeder) tasks(userID primitive.ObjectID) []domain.Task {
	tomorrow := s.now().UTC().Add(24 * time.Hour)
	return []domain.Task{
		{
			UserID:      userID,
			Title:       "Finalize project deliverables",
			Description: "Complete all outstanding items for tomorrow's deadline",
			Priority:    domain.PriorityHigh,
			DueDate:     &tomorrow,
		},
		{
			UserID:      userID,
			Title:       "Prepare product review presentation",
			Description: "Create slides for tomorrow's meeting",
			Priority:    domain.PriorityMedium,
			DueDate:     &tomorrow,
		},
		{
			UserID:      userID,
			Title:       "Review weekly tech newsletter",
			Description: "Catch up on industry trends",
			Priority:    domain.PriorityLow,
		},
	}
}

// Seed writes the demo records. Emails already present (same message id) are
// skipped, so seeding twice does not duplicate them.
func (s *Seeder) Seed(ctx context.Context, userID primitive.ObjectID) error {
	for _, e := range s.emails(userID) {
		e.Priority = s.Priority.Priority(ctx, e.Subject, e.Snippet)
		if err := s.Store.CreateEmail(ctx, &e); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil
			}
			return err
		}
	}
	for _, t := range s.tasks(userID) {
		if err := s.Store.CreateTask(ctx, &t); err != nil {
			return err
		}
	}
	return s.Store.CreateNotification(ctx, &domain.Notification{
		UserID:  userID,
		Type:    domain.NotificationInfo,
		Title:   "Welcome to Syncora!",
		Message: "Your AI command center is ready. Connect your Gmail and start managing your workflow intelligently.",
	})
}

// Go seeds in the background, detached from the request context. Failures are
// only logged.
func (s *Seeder) Go(userID primitive.ObjectID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.Seed(ctx, userID); err != nil {
			s.Log.Error("demo seed failed", zap.String("user_id", userID.Hex()), zap.Error(err))
			return
		}
		s.Log.Info("demo data seeded", zap.String("user_id", userID.Hex()))
	}()
}
