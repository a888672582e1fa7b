package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/AlexJ236/Impulso-Digital/catalog"
	"github.com/AlexJ236/Impulso-Digital/kafka"
	"github.com/AlexJ236/Impulso-Digital/mailer"
	"github.com/AlexJ236/Impulso-Digital/models"
	"github.com/AlexJ236/Impulso-Digital/rates"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const (
	createdOrder     = `{"id":"ORDER-1","status":"CREATED","links":[{"rel":"approve","href":"https://paypal.test/approve"}]}`
	completedCapture = `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-1","amount":{"value":"49.99","currency_code":"USD"}}]}}]}`
	pendingCapture   = `{"id":"ORDER-1","status":"PENDING"}`
)

type createCall struct {
	amount      decimal.Decimal
	currency    string
	description string
}

type mockGateway struct {
	mu          sync.Mutex
	creates     []createCall
	captures    []string
	createResp  string
	captureResp string
	err         error
}

func (m *mockGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, description string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates = append(m.creates, createCall{amount, currency, description})
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(m.createResp), nil
}

func (m *mockGateway) CaptureOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, orderID)
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(m.captureResp), nil
}

func (m *mockGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creates) + len(m.captures)
}

type mockRates struct {
	table rates.Table
	err   error
}

func (m *mockRates) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	rate, ok := m.table[currency]
	if !ok {
		return decimal.Zero, rates.ErrRateUnavailable
	}
	return rate, nil
}

type mockMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []models.CheckoutEvent
}

func (m *mockPublisher) Publish(ctx context.Context, event models.CheckoutEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

type testDeps struct {
	gateway   *mockGateway
	rates     *mockRates
	mailer    *mockMailer
	publisher *mockPublisher
}

func setupCheckoutTest(t *testing.T) (*Service, *testDeps) {
	t.Helper()

	courses, err := catalog.New([]models.Course{
		{ID: "c1", Title: "Go Basics", Category: "Programming", Price: decimal.RequireFromString("49.99")},
		{ID: "c2", Title: "Spreadsheets", Category: "Office", Price: decimal.RequireFromString("19.50")},
	})
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}

	deps := &testDeps{
		gateway:   &mockGateway{createResp: createdOrder, captureResp: completedCapture},
		rates:     &mockRates{table: rates.Table{"PEN": decimal.RequireFromString("3.71"), "JPY": decimal.RequireFromString("149.5")}},
		mailer:    &mockMailer{},
		publisher: &mockPublisher{},
	}
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	svc := NewService(courses, deps.rates, deps.gateway, deps.mailer, deps.publisher, "ops@example.com", logger)
	return svc, deps
}

func TestCreateOrder_USD(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	order, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{CourseID: "c1"})
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	svc.Wait()

	if string(order) != createdOrder {
		t.Errorf("Expected gateway order verbatim, got %s", order)
	}
	if len(deps.gateway.creates) != 1 {
		t.Fatalf("Expected 1 create call, got %d", len(deps.gateway.creates))
	}
	call := deps.gateway.creates[0]
	if call.amount.String() != "49.99" || call.currency != "USD" {
		t.Errorf("Expected 49.99 USD, got %s %s", call.amount, call.currency)
	}
	if call.description != "Course ID: c1" {
		t.Errorf("Unexpected description %q", call.description)
	}
	if got := deps.publisher.types(); len(got) != 1 || got[0] != kafka.EventOrderCreated {
		t.Errorf("Expected one order_created event, got %v", got)
	}
}

func TestCreateOrder_UnknownCourse(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	_, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{CourseID: "nope"})
	svc.Wait()

	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("Expected ErrCourseNotFound, got %v", err)
	}
	if deps.gateway.calls() != 0 {
		t.Errorf("Expected no gateway calls, got %d", deps.gateway.calls())
	}
	if len(deps.mailer.messages()) != 0 {
		t.Error("Expected no mail for unknown course")
	}
}

func TestCreateOrder_ConvertsCurrency(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	if _, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{CourseID: "c1", Currency: "pen"}); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	svc.Wait()

	call := deps.gateway.creates[0]
	if call.amount.String() != "185.46" || call.currency != "PEN" {
		t.Errorf("Expected 185.46 PEN, got %s %s", call.amount, call.currency)
	}
}

func TestCreateOrder_ZeroDecimalCurrency(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	if _, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{CourseID: "c1", Currency: "JPY"}); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	svc.Wait()

	call := deps.gateway.creates[0]
	if call.amount.String() != "7474" || call.currency != "JPY" {
		t.Errorf("Expected 7474 JPY, got %s %s", call.amount, call.currency)
	}
}

func TestCreateOrder_RateFailureFallsBackToUSD(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	deps.rates.err = rates.ErrRateUnavailable

	if _, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{CourseID: "c1", Currency: "PEN"}); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	svc.Wait()

	call := deps.gateway.creates[0]
	if call.amount.String() != "49.99" || call.currency != "USD" {
		t.Errorf("Expected USD fallback 49.99, got %s %s", call.amount, call.currency)
	}
}

func TestCreateOrder_GatewayFailure(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	deps.gateway.err = errors.New("token rejected")

	_, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{CourseID: "c1"})
	svc.Wait()

	if err == nil || errors.Is(err, ErrCourseNotFound) || errors.Is(err, ErrValidation) {
		t.Errorf("Expected upstream error, got %v", err)
	}
	if len(deps.publisher.types()) != 0 {
		t.Error("Expected no event for a failed create")
	}
}

func TestCaptureOrder_CompletedNotifiesOnce(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	capture, err := svc.CaptureOrder(context.Background(), "ORDER-1", models.CaptureOrderRequest{
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		CourseID:      "c1",
	})
	if err != nil {
		t.Fatalf("CaptureOrder returned error: %v", err)
	}
	svc.Wait()

	if string(capture) != completedCapture {
		t.Errorf("Expected capture verbatim, got %s", capture)
	}

	sent := deps.mailer.messages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(sent))
	}
	msg := sent[0]
	if msg.To != "ops@example.com" {
		t.Errorf("Expected operator recipient, got %s", msg.To)
	}
	if !strings.Contains(msg.Subject, "Go Basics") {
		t.Errorf("Expected course title in subject, got %s", msg.Subject)
	}
	for _, want := range []string{"49.99 USD", "ORDER-1", "Ana", "ana@example.com"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("Expected %q in body, got %s", want, msg.HTML)
		}
	}
	if len(msg.Attachments) != 0 {
		t.Error("Expected no attachments on capture notification")
	}

	if got := deps.publisher.types(); len(got) != 1 || got[0] != kafka.EventPaymentCaptured {
		t.Errorf("Expected one payment_captured event, got %v", got)
	}
}

func TestCaptureOrder_NotCompletedSendsNothing(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	deps.gateway.captureResp = pendingCapture

	capture, err := svc.CaptureOrder(context.Background(), "ORDER-1", models.CaptureOrderRequest{CourseID: "c1"})
	if err != nil {
		t.Fatalf("CaptureOrder returned error: %v", err)
	}
	svc.Wait()

	if string(capture) != pendingCapture {
		t.Errorf("Expected capture verbatim, got %s", capture)
	}
	if len(deps.mailer.messages()) != 0 {
		t.Error("Expected no notification for a non-completed capture")
	}
}

func TestCaptureOrder_UnknownCourseUsesPlaceholder(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	if _, err := svc.CaptureOrder(context.Background(), "ORDER-1", models.CaptureOrderRequest{CourseID: "gone"}); err != nil {
		t.Fatalf("CaptureOrder returned error: %v", err)
	}
	svc.Wait()

	sent := deps.mailer.messages()
	if len(sent) != 1 || !strings.Contains(sent[0].Subject, unknownProduct) {
		t.Errorf("Expected placeholder product name, got %+v", sent)
	}
}

func TestCaptureOrder_GatewayFailure(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	deps.gateway.err = errors.New("capture rejected")

	if _, err := svc.CaptureOrder(context.Background(), "ORDER-1", models.CaptureOrderRequest{CourseID: "c1"}); err == nil {
		t.Error("Expected error from failed capture")
	}
	svc.Wait()

	if len(deps.mailer.messages()) != 0 {
		t.Error("Expected no notification after a failed capture")
	}
}

func TestCaptureOrder_TwiceNotifiesTwice(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	req := models.CaptureOrderRequest{CourseID: "c1"}

	for i := 0; i < 2; i++ {
		if _, err := svc.CaptureOrder(context.Background(), "ORDER-1", req); err != nil {
			t.Fatalf("CaptureOrder returned error: %v", err)
		}
	}
	svc.Wait()

	if got := len(deps.mailer.messages()); got != 2 {
		t.Errorf("Expected 2 notifications, got %d", got)
	}
}

func TestCaptureOrder_MailFailureDoesNotFailCapture(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	deps.mailer.err = mailer.ErrNotConfigured

	capture, err := svc.CaptureOrder(context.Background(), "ORDER-1", models.CaptureOrderRequest{CourseID: "c1"})
	svc.Wait()

	if err != nil {
		t.Errorf("Expected capture to succeed, got %v", err)
	}
	if string(capture) != completedCapture {
		t.Errorf("Expected capture verbatim, got %s", capture)
	}
}

func TestCaptureOrder_SurvivesRequestCancellation(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := svc.CaptureOrder(ctx, "ORDER-1", models.CaptureOrderRequest{CourseID: "c1"}); err != nil {
		t.Fatalf("CaptureOrder returned error: %v", err)
	}
	cancel()
	svc.Wait()

	if len(deps.mailer.messages()) != 1 {
		t.Error("Expected notification to be sent after the request ended")
	}
}

func TestCaptureOrder_EscapesCustomerInput(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	_, err := svc.CaptureOrder(context.Background(), "ORDER-1", models.CaptureOrderRequest{
		CustomerName: "<script>alert(1)</script>",
		CourseID:     "c1",
	})
	if err != nil {
		t.Fatalf("CaptureOrder returned error: %v", err)
	}
	svc.Wait()

	if strings.Contains(deps.mailer.messages()[0].HTML, "<script>") {
		t.Error("Expected customer name to be escaped")
	}
}

func TestSubmitCryptoProof_RequiresFile(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	err := svc.SubmitCryptoProof(context.Background(), models.CryptoProof{ProductName: "Go Basics"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	if len(deps.mailer.messages()) != 0 {
		t.Error("Expected no mail without a proof file")
	}
}

func TestSubmitCryptoProof_Success(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	proof := models.CryptoProof{
		CustomerName:  "Luis",
		CustomerEmail: "luis@example.com",
		ProductName:   "Go Basics",
		ProductPrice:  "49.99",
		Filename:      "receipt.png",
		Content:       []byte{0x89, 0x50, 0x4e, 0x47},
	}

	if err := svc.SubmitCryptoProof(context.Background(), proof); err != nil {
		t.Fatalf("SubmitCryptoProof returned error: %v", err)
	}
	svc.Wait()

	sent := deps.mailer.messages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 mail, got %d", len(sent))
	}
	msg := sent[0]
	if !strings.Contains(msg.Subject, "Go Basics") {
		t.Errorf("Expected product in subject, got %s", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "49.99 USDT") {
		t.Errorf("Expected USDT price in body, got %s", msg.HTML)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != "receipt.png" || len(msg.Attachments[0].Content) != 4 {
		t.Errorf("Expected receipt.png as sole attachment, got %+v", msg.Attachments)
	}
	if got := deps.publisher.types(); len(got) != 1 || got[0] != kafka.EventCryptoProofSubmitted {
		t.Errorf("Expected one crypto_proof_submitted event, got %v", got)
	}
}

func TestSubmitCryptoProof_MailFailure(t *testing.T) {
	svc, deps := setupCheckoutTest(t)
	deps.mailer.err = errors.New("relay refused")

	err := svc.SubmitCryptoProof(context.Background(), models.CryptoProof{Filename: "r.png", Content: []byte("x")})
	svc.Wait()

	if err == nil || errors.Is(err, ErrValidation) {
		t.Errorf("Expected upstream error, got %v", err)
	}
	if len(deps.publisher.types()) != 0 {
		t.Error("Expected no event when the proof was not delivered")
	}
}

func TestCaptureOrder_RejectsMalformedOrderID(t *testing.T) {
	svc, deps := setupCheckoutTest(t)

	for _, id := range []string{"", "ABC#frag", "ABC?x=1", "../../v1/other", "ORDER 1"} {
		_, err := svc.CaptureOrder(context.Background(), id, models.CaptureOrderRequest{CourseID: "c1"})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Order id %q: expected ErrValidation, got %v", id, err)
		}
	}
	svc.Wait()

	if deps.gateway.calls() != 0 {
		t.Errorf("Expected no gateway calls, got %d", deps.gateway.calls())
	}
	if len(deps.mailer.messages()) != 0 {
		t.Error("Expected no notifications")
	}
}
