package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/projects"
	"cehpoint/project-portal/project-portal-backend/pkg/workflows"
)

// EmailSender is the part of the SES v2 client used here
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EventPublisher is the part of the SNS client used here
type EventPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Pusher delivers a message to a connected user
type Pusher interface {
	SendToUser(userID string, message Message) error
}

// Config holds the delivery addresses. Empty values disable that channel.
type Config struct {
	FromAddress string
	TopicARN    string
}

// Notifier fans project lifecycle events out to email, the events topic
// and live websocket sessions
type Notifier struct {
	email  EmailSender
	events EventPublisher
	pusher Pusher
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewNotifier creates a notifier. Any of email, events or pusher may be nil.
func NewNotifier(email EmailSender, events EventPublisher, pusher Pusher, config Config, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		email:  email,
		events: events,
		pusher: pusher,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

var _ projects.Notifier = (*Notifier)(nil)

// ProjectSubmitted publishes the submission event and tells the client's
// open sessions
func (n *Notifier) ProjectSubmitted(ctx context.Context, project *projects.Project) {
	n.push(project.ClientID, Message{
		Type: MessageTypeProjectSubmitted,
		Data: map[string]interface{}{
			"projectId":   project.ID.Hex(),
			"projectName": project.ProjectName,
			"status":      project.Status,
		},
	})

	if n.events == nil || n.config.TopicARN == "" {
		return
	}

	body, err := json.Marshal(Event{
		Event:           EventProjectSubmitted,
		ProjectID:       project.ID.Hex(),
		ProjectName:     project.ProjectName,
		ClientName:      project.ClientName,
		ClientEmail:     project.ClientEmail,
		ProjectBudget:   project.ProjectBudget,
		Currency:        project.Currency,
		QuotationNumber: project.QuotationNumber,
		OccurredAt:      n.now().UTC(),
	})
	if err != nil {
		n.logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	_, err = n.events.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.config.TopicARN),
		Subject:  aws.String("New project: " + project.ProjectName),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventProjectSubmitted),
			},
		},
	})
	if err != nil {
		n.logger.Warn("Failed to publish submission event",
			zap.String("project_id", project.ID.Hex()),
			zap.Error(err),
		)
	}
}

// StatusChanged emails the client and pushes the new status to their sessions
func (n *Notifier) StatusChanged(ctx context.Context, project *projects.Project, from string) {
	n.push(project.ClientID, Message{
		Type: MessageTypeStatusChanged,
		Data: map[string]interface{}{
			"projectId":   project.ID.Hex(),
			"projectName": project.ProjectName,
			"from":        from,
			"status":      project.Status,
		},
	})

	if n.email == nil || n.config.FromAddress == "" || project.ClientEmail == "" {
		return
	}

	subject, body := statusEmail(project, from)
	_, err := n.email.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.config.FromAddress),
		Destination:      &sestypes.Destination{ToAddresses: []string{project.ClientEmail}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		n.logger.Warn("Failed to send status email",
			zap.String("project_id", project.ID.Hex()),
			zap.String("to", project.ClientEmail),
			zap.Error(err),
		)
	}
}

func (n *Notifier) push(userID string, msg Message) {
	if n.pusher == nil || userID == "" {
		return
	}
	msg.Timestamp = n.now()
	if err := n.pusher.SendToUser(userID, msg); err != nil {
		n.logger.Debug("Websocket push skipped", zap.String("user_id", userID), zap.Error(err))
	}
}

func statusEmail(project *projects.Project, from string) (string, string) {
	subject := fmt.Sprintf("Your project %q is now %s", project.ProjectName, project.Status)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", project.ClientName)
	fmt.Fprintf(&b, "The status of your project %q changed from %s to %s.\n", project.ProjectName, from, project.Status)
	if project.Status == workflows.StatusRejected && project.RejectionReason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", project.RejectionReason)
	}
	b.WriteString("\nYou can follow progress from your dashboard.\n")
	return subject, b.String()
}
