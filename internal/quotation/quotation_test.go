package quotation

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCalculateBudgetFormula(t *testing.T) {
	calc := NewCalculator(DefaultRates)

	teams := []Team{
		{SeniorDevelopers: 1},
		{JuniorDevelopers: 3},
		{UIUXDesigners: 2},
		{SeniorDevelopers: 2, JuniorDevelopers: 1, UIUXDesigners: 4},
		{SeniorDevelopers: 10, JuniorDevelopers: 10, UIUXDesigners: 10},
	}
	for _, team := range teams {
		want := int64(75000*team.SeniorDevelopers + 30000*team.JuniorDevelopers + 8000*team.UIUXDesigners + 50000)
		assert.Equal(t, want, calc.Calculate(team, CurrencyINR).Total, "team %+v", team)
	}
}

func TestCalculateLineItems(t *testing.T) {
	calc := NewCalculator(DefaultRates)

	b := calc.Calculate(Team{SeniorDevelopers: 1}, CurrencyINR)

	require.Len(t, b.LineItems, 2)
	assert.Equal(t, LineItem{Description: "Senior Developer", Quantity: 1, Rate: 75000, Total: 75000}, b.LineItems[0])
	assert.Equal(t, LineItem{Description: "Project Management", Quantity: 1, Rate: 50000, Total: 50000}, b.LineItems[1])
	assert.Equal(t, int64(125000), b.Total)
}

func TestCalculateUSD(t *testing.T) {
	calc := NewCalculator(DefaultRates)

	b := calc.Calculate(Team{SeniorDevelopers: 1, JuniorDevelopers: 1, UIUXDesigners: 1}, CurrencyUSD)

	assert.Equal(t, CurrencyUSD, b.Currency)
	assert.Equal(t, int64(3000), b.LineItems[0].Rate)
	assert.Equal(t, int64(1200), b.LineItems[1].Rate)
	assert.Equal(t, int64(320), b.LineItems[2].Rate)
	assert.Equal(t, int64(2000), b.LineItems[3].Rate)
	assert.Equal(t, int64(6520), b.Total)
}

func TestCalculateUnknownCurrencyFallsBackToINR(t *testing.T) {
	b := NewCalculator(DefaultRates).Calculate(Team{}, Currency("EUR"))
	assert.Equal(t, CurrencyINR, b.Currency)
	assert.Equal(t, int64(50000), b.Total)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "₹ 1,25,000", FormatAmount(125000, CurrencyINR))
	assert.Equal(t, "₹ 75,000", FormatAmount(75000, CurrencyINR))
	assert.Equal(t, "₹ 1,00,00,000", FormatAmount(10000000, CurrencyINR))
	assert.Equal(t, "₹ 800", FormatAmount(800, CurrencyINR))
	assert.Equal(t, "$ 5,000", FormatAmount(5000, CurrencyUSD))
	assert.Equal(t, "$ 1,234,567", FormatAmount(1234567, CurrencyUSD))
	assert.Equal(t, "$ 320", FormatAmount(320, CurrencyUSD))
}

func TestTruncateWords(t *testing.T) {
	long := strings.Repeat("word ", 25)
	out := TruncateWords(long, 20)

	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Len(t, strings.Fields(strings.TrimSuffix(out, "...")), 20)
	assert.Equal(t, "short overview", TruncateWords("  short   overview ", 20))
}

func TestNewNumber(t *testing.T) {
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Regexp(t, regexp.MustCompile(`^Q-20260307-\d{3}$`), NewNumber(now))
}

func TestGenerateRendersDocument(t *testing.T) {
	g := NewGenerator(NewCalculator(DefaultRates), DefaultCompany)
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)

	q, err := g.Generate(Input{
		Client:           Client{Name: "Asha <Admin>", Email: "asha@example.com", Phone: "123"},
		ProjectName:      "Website Redesign Project",
		ProjectOverview:  strings.Repeat("a", 100),
		DevelopmentAreas: []string{"Web", "Mobile"},
		Team:             Team{SeniorDevelopers: 1},
		Currency:         CurrencyINR,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(125000), q.Breakdown.Total)
	assert.Contains(t, q.HTML, "CEHPOINT")
	assert.Contains(t, q.HTML, "Date: 07/03/2026")
	assert.Contains(t, q.HTML, "₹ 1,25,000")
	assert.Contains(t, q.HTML, "Senior Developer")
	assert.NotContains(t, q.HTML, "Junior Developer")
	assert.Contains(t, q.HTML, "This quotation is valid for 30 days from the issue date.")
	assert.Contains(t, q.HTML, "Asha &lt;Admin&gt;")
	assert.Contains(t, q.HTML, q.Number)
}

type MockDynamo struct {
	mock.Mock
}

func (m *MockDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *MockDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func TestLedgerRecordAndGet(t *testing.T) {
	db := new(MockDynamo)
	ledger := NewDynamoLedger(db, "quotations")
	ctx := context.Background()

	record := &Record{QuotationNumber: "Q-20260307-042", ClientEmail: "a@b.c", Currency: CurrencyINR, Total: 125000}

	db.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.TableName == "quotations" && in.Item["quotation_number"] != nil
	})).Return(nil)
	require.NoError(t, ledger.Record(ctx, record))

	item, err := attributevalue.MarshalMap(record)
	require.NoError(t, err)
	db.On("GetItem", ctx, mock.AnythingOfType("*dynamodb.GetItemInput")).Return(&dynamodb.GetItemOutput{Item: item}, nil).Once()

	got, err := ledger.Get(ctx, "Q-20260307-042")
	require.NoError(t, err)
	assert.Equal(t, int64(125000), got.Total)
	db.AssertExpectations(t)
}

func TestLedgerGetMissing(t *testing.T) {
	db := new(MockDynamo)
	ledger := NewDynamoLedger(db, "quotations")
	ctx := context.Background()

	db.On("GetItem", ctx, mock.AnythingOfType("*dynamodb.GetItemInput")).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := ledger.Get(ctx, "Q-nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
