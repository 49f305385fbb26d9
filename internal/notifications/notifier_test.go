package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cehpoint/project-portal/project-portal-backend/internal/projects"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sesv2.SendEmailOutput), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) SendToUser(userID string, message Message) error {
	return m.Called(userID, message).Error(0)
}

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testProject() *projects.Project {
	return &projects.Project{
		ID:              primitive.NewObjectID(),
		ProjectName:     "Inventory Portal",
		ClientID:        "client-1",
		ClientName:      "Asha",
		ClientEmail:     "asha@example.com",
		ProjectBudget:   193000,
		Currency:        "INR",
		Status:          "pending",
		QuotationNumber: "Q-20250301-042",
	}
}

func newTestNotifier(email EmailSender, events EventPublisher, pusher Pusher) *Notifier {
	n := NewNotifier(email, events, pusher, Config{
		FromAddress: "portal@example.com",
		TopicARN:    "arn:aws:sns:ap-south-1:123456789012:projects",
	}, nil)
	n.now = func() time.Time { return fixedNow }
	return n
}

// ==================== ProjectSubmitted ====================

func TestProjectSubmittedPublishesEvent(t *testing.T) {
	events := new(MockEventPublisher)
	pusher := new(MockPusher)
	project := testProject()

	var published *sns.PublishInput
	events.On("Publish", mock.Anything, mock.AnythingOfType("*sns.PublishInput")).
		Run(func(args mock.Arguments) { published = args.Get(1).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{}, nil)
	pusher.On("SendToUser", "client-1", mock.MatchedBy(func(m Message) bool {
		return m.Type == MessageTypeProjectSubmitted && m.Timestamp.Equal(fixedNow)
	})).Return(nil)

	newTestNotifier(nil, events, pusher).ProjectSubmitted(context.Background(), project)

	require.NotNil(t, published)
	assert.Equal(t, "arn:aws:sns:ap-south-1:123456789012:projects", aws.ToString(published.TopicArn))
	assert.Equal(t, EventProjectSubmitted, aws.ToString(published.MessageAttributes["event"].StringValue))

	var event Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(published.Message)), &event))
	assert.Equal(t, EventProjectSubmitted, event.Event)
	assert.Equal(t, project.ID.Hex(), event.ProjectID)
	assert.Equal(t, int64(193000), event.ProjectBudget)
	assert.Equal(t, "Q-20250301-042", event.QuotationNumber)
	assert.True(t, event.OccurredAt.Equal(fixedNow))

	events.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestProjectSubmittedSwallowsFailures(t *testing.T) {
	events := new(MockEventPublisher)
	pusher := new(MockPusher)
	events.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	pusher.On("SendToUser", mock.Anything, mock.Anything).Return(errors.New("user not connected"))

	assert.NotPanics(t, func() {
		newTestNotifier(nil, events, pusher).ProjectSubmitted(context.Background(), testProject())
	})
	events.AssertNumberOfCalls(t, "Publish", 1)
}

func TestProjectSubmittedWithoutTopic(t *testing.T) {
	events := new(MockEventPublisher)
	n := NewNotifier(nil, events, nil, Config{}, nil)

	n.ProjectSubmitted(context.Background(), testProject())
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

// ==================== StatusChanged ====================

func TestStatusChangedEmailsClient(t *testing.T) {
	email := new(MockEmailSender)
	pusher := new(MockPusher)
	project := testProject()
	project.Status = "in-progress"

	var sent *sesv2.SendEmailInput
	email.On("SendEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*sesv2.SendEmailInput) }).
		Return(&sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil)
	pusher.On("SendToUser", "client-1", mock.MatchedBy(func(m Message) bool {
		return m.Type == MessageTypeStatusChanged && m.Data["from"] == "pending" && m.Data["status"] == "in-progress"
	})).Return(nil)

	newTestNotifier(email, nil, pusher).StatusChanged(context.Background(), project, "pending")

	require.NotNil(t, sent)
	assert.Equal(t, "portal@example.com", aws.ToString(sent.FromEmailAddress))
	assert.Equal(t, []string{"asha@example.com"}, sent.Destination.ToAddresses)
	assert.Equal(t, `Your project "Inventory Portal" is now in-progress`, aws.ToString(sent.Content.Simple.Subject.Data))
	assert.Contains(t, aws.ToString(sent.Content.Simple.Body.Text.Data), "changed from pending to in-progress")
	pusher.AssertExpectations(t)
}

func TestStatusChangedIncludesRejectionReason(t *testing.T) {
	project := testProject()
	project.Status = "rejected"
	project.RejectionReason = "Budget too low"

	_, body := statusEmail(project, "pending")
	assert.Contains(t, body, "Reason: Budget too low")

	project.Status = "in-progress"
	_, body = statusEmail(project, "pending")
	assert.NotContains(t, body, "Reason:")
}

func TestStatusChangedSkipsEmailWithoutAddress(t *testing.T) {
	email := new(MockEmailSender)
	project := testProject()
	project.ClientEmail = ""

	newTestNotifier(email, nil, nil).StatusChanged(context.Background(), project, "pending")
	email.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
}

func TestStatusChangedSwallowsEmailError(t *testing.T) {
	email := new(MockEmailSender)
	email.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("sandbox"))

	assert.NotPanics(t, func() {
		newTestNotifier(email, nil, nil).StatusChanged(context.Background(), testProject(), "pending")
	})
	email.AssertExpectations(t)
}
