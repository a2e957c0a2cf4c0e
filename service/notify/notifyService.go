// Package notify is the outbound collaborator: an in-app notification row
// plus a best-effort email. Delivery failures never propagate into the
// workflow that triggered them.
package notify

import (
	"context"
	"log/slog"
	mailerrepo "scholarhub/repository/mailer"
	notifrepo "scholarhub/repository/notification"
	userrepo "scholarhub/repository/user"

	"scholarhub/model"
)

type Service interface {
	// Send records an in-app notification and emails the user if they have
	// an address. Only the database insert can fail the call.
	Send(ctx context.Context, userID int64, title, message, link string) error
	List(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

type service struct {
	nr  notifrepo.Repo
	ur  userrepo.Repo
	m   mailerrepo.Mailer
	log *slog.Logger
}

func New(nr notifrepo.Repo, ur userrepo.Repo, m mailerrepo.Mailer, log *slog.Logger) Service {
	return &service{nr: nr, ur: ur, m: m, log: log}
}

func (s *service) Send(ctx context.Context, userID int64, title, message, link string) error {
	n := &model.Notification{UserID: userID, Title: title, Message: message}
	if link != "" {
		n.Link = &link
	}
	if err := s.nr.Insert(ctx, n); err != nil {
		return err
	}

	u, err := s.ur.ByID(ctx, userID)
	if err != nil || u.Email == "" {
		return nil
	}
	if err := s.m.Send(mailerrepo.Mail{
		To:      u.Email,
		Subject: "[ScholarHub] " + title,
		Body:    message,
	}); err != nil {
		s.log.Warn("notification email failed", "user_id", userID, "err", err)
	}
	return nil
}

func (s *service) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.nr.ListByUser(ctx, userID, 100)
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.nr.MarkRead(ctx, userID, notificationID)
}

func (s *service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.nr.MarkAllRead(ctx, userID)
}
