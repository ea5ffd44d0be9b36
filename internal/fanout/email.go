// ABOUTME: Conditional email notification for new messages and the
// ABOUTME: inactive-project owner alert, over SMTP with HTML templates.

package fanout

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/shoutbox/shoutbox/internal/store"
)

// Email outcomes reported back to the caller of a message dispatch.
const (
	EmailDisabled  = "Emails disabled"
	EmailThrottled = "Throttled"
	EmailNoUsers   = "No users qualify"
	EmailSuccess   = "Success"
)

// emailCooldown is the minimum gap between two message-notification runs
// for the same project.
const emailCooldown = 5 * time.Minute

// throttledPlans never send message emails at all.
var throttledPlans = []string{store.PlanBasic, store.PlanLight}

// needsThrottle reports whether a plan belongs to the throttled tier.
// Substring match so variants like "basic_monthly" qualify.
func needsThrottle(planType string) bool {
	for _, plan := range throttledPlans {
		if strings.Contains(planType, plan) {
			return true
		}
	}
	return false
}

// Notifier delivers the two email kinds the system sends. Implementations
// must be safe for concurrent use.
type Notifier interface {
	SendMessageEmail(ctx context.Context, project *store.Project, msg *store.Message, toEmail string) error
	NotifyProjectInactive(ctx context.Context, project *store.Project) error
}

// Emailer decides who gets a message notification and reports why when
// nobody does.
type Emailer struct {
	store    store.ProjectStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewEmailer(st store.ProjectStore, notifier Notifier, logger *slog.Logger) *Emailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emailer{
		store:    st,
		notifier: notifier,
		logger:   logger.With("component", "emailer"),
		now:      time.Now,
	}
}

// EmailChatMembers notifies every qualifying member about a new message:
// offline, not the sender, with an email address on file. Returns the
// outcome and the addresses actually reached. A successful run stamps the
// project's cooldown.
func (e *Emailer) EmailChatMembers(ctx context.Context, project *store.Project, msg *store.Message, people []*store.Person) (string, []string) {
	if !project.EmailsEnabled || needsThrottle(project.PlanType) {
		return EmailDisabled, nil
	}
	now := e.now().UTC()
	if now.Before(project.EmailLastSent.Add(emailCooldown)) {
		return EmailThrottled, nil
	}

	var sent []string
	for _, person := range people {
		if person.IsOnline || person.Email == "" {
			continue
		}
		if msg.SenderID != nil && person.ID == *msg.SenderID {
			continue
		}
		if err := e.notifier.SendMessageEmail(ctx, project, msg, person.Email); err != nil {
			e.logger.Warn("message email failed", "project", project.PublicKey, "to", person.Email, "error", err)
			continue
		}
		sent = append(sent, person.Email)
	}
	if len(sent) == 0 {
		return EmailNoUsers, nil
	}

	project.EmailLastSent = now
	if err := e.store.UpdateProject(ctx, project); err != nil {
		e.logger.Warn("stamping email cooldown failed", "project", project.PublicKey, "error", err)
	}
	return EmailSuccess, sent
}

const messageTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
        .header { background-color: #4a6cf7; color: white; padding: 10px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { padding: 20px; }
        .message { background-color: #f5f5f5; padding: 12px; border-radius: 4px; }
        .button { display: inline-block; padding: 10px 20px; background-color: #4a6cf7; color: white; text-decoration: none; border-radius: 4px; font-weight: bold; }
        .footer { margin-top: 20px; font-size: 0.8em; color: #777; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>New message on {{.Company}}</h1>
        </div>
        <div class="content">
            <p><b>{{.Sender}}</b> wrote:</p>
            <p class="message">{{.Text}}</p>
            {{if .Link}}<p style="text-align: center;"><a href="{{.Link}}" class="button">Open chat</a></p>{{end}}
        </div>
        <div class="footer">
            <p>You received this because you were offline when the message arrived.</p>
        </div>
    </div>
</body>
</html>
`

const inactiveTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
        .header { background-color: #d9534f; color: white; padding: 10px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { padding: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Your project is deactivated</h1>
        </div>
        <div class="content">
            <p>Requests are still arriving for <b>{{.Title}}</b>, but the project
            is deactivated and every request is being refused.</p>
            <p>Reactivate the project to restore service.</p>
        </div>
    </div>
</body>
</html>
`

// SMTPNotifier sends over plain SMTP. An empty Host switches to logging
// the mail instead of sending it, which keeps development setups working
// without a relay.
type SMTPNotifier struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string

	logger  *slog.Logger
	msgTmpl *template.Template
	offTmpl *template.Template
}

func NewSMTPNotifier(host, port, username, password, from string, logger *slog.Logger) (*SMTPNotifier, error) {
	msgTmpl, err := template.New("message").Parse(messageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing message template: %w", err)
	}
	offTmpl, err := template.New("inactive").Parse(inactiveTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing inactive template: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPNotifier{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		logger:   logger.With("component", "smtp"),
		msgTmpl:  msgTmpl,
		offTmpl:  offTmpl,
	}, nil
}

func (s *SMTPNotifier) SendMessageEmail(_ context.Context, project *store.Project, msg *store.Message, toEmail string) error {
	company := project.EmailCompanyName
	if company == "" {
		company = project.Title
	}
	var body bytes.Buffer
	err := s.msgTmpl.Execute(&body, map[string]string{
		"Company": company,
		"Sender":  msg.SenderUsername,
		"Text":    msg.Text,
		"Link":    project.EmailLink,
	})
	if err != nil {
		return fmt.Errorf("rendering message email: %w", err)
	}

	from := project.EmailSender
	if from == "" {
		from = s.From
	}
	subject := "New Message | " + company
	return s.send(from, toEmail, subject, body.String())
}

func (s *SMTPNotifier) NotifyProjectInactive(_ context.Context, project *store.Project) error {
	var body bytes.Buffer
	if err := s.offTmpl.Execute(&body, map[string]string{"Title": project.Title}); err != nil {
		return fmt.Errorf("rendering inactive email: %w", err)
	}
	subject := "Project deactivated | " + project.Title
	return s.send(s.From, project.OwnerEmail, subject, body.String())
}

func (s *SMTPNotifier) send(from, to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if s.Host == "" {
		s.logger.Info("email relay not configured, logging instead", "to", to, "subject", subject)
		return nil
	}

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := s.Host + ":" + s.Port
	return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg.String()))
}
