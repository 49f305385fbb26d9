package quotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrRecordNotFound = errors.New("quotation record not found")

// Record is the ledger entry of an issued quotation.
//
// Storage model (DynamoDB):
//   - PK: quotation_number
type Record struct {
	QuotationNumber string     `json:"quotation_number" dynamodbav:"quotation_number"`
	ProjectID       string     `json:"project_id" dynamodbav:"project_id"`
	ClientEmail     string     `json:"client_email" dynamodbav:"client_email"`
	Currency        Currency   `json:"currency" dynamodbav:"currency"`
	LineItems       []LineItem `json:"line_items" dynamodbav:"line_items"`
	Total           int64      `json:"total" dynamodbav:"total"`
	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
}

// NewRecord builds a ledger entry from an issued quotation
func NewRecord(q *Quotation, projectID, clientEmail string) *Record {
	return &Record{
		QuotationNumber: q.Number,
		ProjectID:       projectID,
		ClientEmail:     clientEmail,
		Currency:        q.Breakdown.Currency,
		LineItems:       q.Breakdown.LineItems,
		Total:           q.Breakdown.Total,
		CreatedAt:       q.IssuedAt,
	}
}

// DynamoAPI is the subset of the DynamoDB client the ledger uses
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Ledger stores issued quotations
type Ledger interface {
	Record(ctx context.Context, record *Record) error
	Get(ctx context.Context, number string) (*Record, error)
}

type dynamoLedger struct {
	client DynamoAPI
	table  string
}

func NewDynamoLedger(client DynamoAPI, table string) Ledger {
	return &dynamoLedger{client: client, table: table}
}

func (l *dynamoLedger) Record(ctx context.Context, record *Record) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal quotation record: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(quotation_number)"),
	})
	if err != nil {
		return fmt.Errorf("failed to record quotation %s: %w", record.QuotationNumber, err)
	}
	return nil
}

func (l *dynamoLedger) Get(ctx context.Context, number string) (*Record, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"quotation_number": &types.AttributeValueMemberS{Value: number},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get quotation %s: %w", number, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrRecordNotFound
	}

	var record Record
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quotation record: %w", err)
	}
	return &record, nil
}

type noopLedger struct{}

// NewNoopLedger is used when no ledger table is configured
func NewNoopLedger() Ledger { return noopLedger{} }

func (noopLedger) Record(context.Context, *Record) error { return nil }

func (noopLedger) Get(context.Context, string) (*Record, error) { return nil, ErrRecordNotFound }
