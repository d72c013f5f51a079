package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"time"

	"course-forum-backend/config"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/util"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// NotificationService e-mails post authors about replies and about posts
// removed by someone else. Sending is asynchronous and failures are logged.
type NotificationService struct {
	enabled     bool
	from        string
	frontendURL string
	userRepo    interfaces.UserRepository
	send        func(*mail.Message) error
}

func NewNotificationService(cfg config.Config, userRepo interfaces.UserRepository) *NotificationService {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	d.Timeout = 20 * time.Second
	d.SSL = cfg.SMTPPort == 465
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}

	from := cfg.MailFrom
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &NotificationService{
		enabled:     cfg.NotificationsEnabled,
		from:        from,
		frontendURL: cfg.FrontendURL,
		userRepo:    userRepo,
		send:        func(m *mail.Message) error { return d.DialAndSend(m) },
	}
}

func (s *NotificationService) NotifyReply(ctx context.Context, post *model.Post, reply *model.Reply) {
	link := fmt.Sprintf("%s/forum/posts/%s#reply-%s", s.frontendURL, post.ID, reply.ID)
	subject := fmt.Sprintf("New reply to \"%s\"", post.Title)
	body := fmt.Sprintf("<p>%s replied to your post <b>%s</b>:</p><blockquote>%s</blockquote><p><a href=\"%s\">View the discussion</a></p>",
		html.EscapeString(reply.AuthorName), html.EscapeString(post.Title), html.EscapeString(reply.Content), link)
	s.notifyAuthor(ctx, post.AuthorID, subject, body)
}

func (s *NotificationService) NotifyPostDeleted(ctx context.Context, post *model.Post, by *model.Actor, reason string) {
	subject := fmt.Sprintf("Your post \"%s\" was removed", post.Title)
	body := fmt.Sprintf("<p>Your post <b>%s</b> was removed by %s.</p>",
		html.EscapeString(post.Title), html.EscapeString(by.Name))
	if reason != "" {
		body += fmt.Sprintf("<p>Reason: %s</p>", html.EscapeString(reason))
	}
	s.notifyAuthor(ctx, post.AuthorID, subject, body)
}

func (s *NotificationService) notifyAuthor(ctx context.Context, authorID, subject, body string) {
	if !s.enabled {
		return
	}
	// The request context ends with the response; the lookup must outlive it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	go func() {
		defer cancel()
		author, err := s.userRepo.FindByID(ctx, authorID)
		if err != nil || author == nil || author.Email == "" {
			util.Logger.Warn("no address for notification", zap.String("user_id", authorID), zap.Error(err))
			return
		}
		if err := s.sendEmail(author.Email, subject, body); err != nil {
			util.Logger.Error("failed to send notification", zap.Error(err), zap.String("to", author.Email))
		}
	}()
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	util.Logger.Info("notification sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
