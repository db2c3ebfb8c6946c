// Package mail delivers deadline digests to apprentices. The sendgrid
// service is the production path; the console service logs messages
// instead of sending and backs local development.
package mail

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"alteris/gateway/internal/model"
	"alteris/gateway/internal/notify"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Message is one plain-text email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Body    string
}

// Service is anything that can deliver a message.
type Service interface {
	Send(ctx context.Context, msg Message) error
}

// ConsoleService writes messages to the log.
type ConsoleService struct {
	logger *zap.Logger
}

func NewConsoleService(logger *zap.Logger) *ConsoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleService{logger: logger}
}

func (s *ConsoleService) Send(ctx context.Context, msg Message) error {
	s.logger.Info("mail (console)",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// SendgridService delivers through the Sendgrid v3 API.
type SendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridService(apiKey, fromEmail, fromName string) *SendgridService {
	return &SendgridService{
		key:        apiKey,
		from:       sgmail.NewEmail(fromName, fromEmail),
		subjPrefix: "[" + fromName + "] ",
	}
}

func (s *SendgridService) Send(ctx context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// Digest builds the plain-text deadline recap for one user from their
// feed. Only deliverable items make the email; ok is false when there
// is nothing worth sending.
func Digest(user *model.User, items []notify.Item) (Message, bool) {
	var upcoming, overdue []notify.Item
	for _, item := range items {
		switch item.Type {
		case notify.TypeDeadline:
			upcoming = append(upcoming, item)
		case notify.TypeOverdue:
			overdue = append(overdue, item)
		}
	}
	if len(upcoming)+len(overdue) == 0 {
		return Message{}, false
	}

	var b strings.Builder
	name := user.FullName
	if name == "" {
		name = user.Email
	}
	fmt.Fprintf(&b, "Bonjour %s,\n\n", name)
	if len(upcoming) > 0 {
		b.WriteString("Livrables proches d'echeance :\n")
		for _, item := range upcoming {
			fmt.Fprintf(&b, "  - %s (echeance : %s)\n", item.Title, item.Date)
		}
	}
	if len(overdue) > 0 {
		if len(upcoming) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Livrables en retard :\n")
		for _, item := range overdue {
			fmt.Fprintf(&b, "  - %s (echeance depassee : %s)\n", item.Title, item.Date)
		}
	}
	b.WriteString("\nConnectez-vous a votre journal pour deposer vos documents.\n")

	subject := "Echeances prochaines"
	if len(upcoming) == 0 {
		subject = "Livrables en retard"
	}
	return Message{
		ToName:  user.FullName,
		ToEmail: user.Email,
		Subject: subject,
		Body:    b.String(),
	}, true
}
