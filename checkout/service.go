package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/AlexJ236/Impulso-Digital/gateway"
	"github.com/AlexJ236/Impulso-Digital/kafka"
	"github.com/AlexJ236/Impulso-Digital/mailer"
	"github.com/AlexJ236/Impulso-Digital/middleware"
	"github.com/AlexJ236/Impulso-Digital/models"
	"github.com/AlexJ236/Impulso-Digital/rates"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrValidation     = errors.New("invalid request")
)

// orderIDPattern matches gateway order ids. Anything else never reaches the gateway.
var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

const (
	unknownProduct = "Unknown product"
	notifyTimeout  = 30 * time.Second

	kindCapture = "capture"
	kindCrypto  = "crypto"
)

type CourseFinder interface {
	Find(id string) (models.Course, bool)
}

type RateSource interface {
	Rate(ctx context.Context, currency string) (decimal.Decimal, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, description string) (json.RawMessage, error)
	CaptureOrder(ctx context.Context, orderID string) (json.RawMessage, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.CheckoutEvent) error
}

// Service sequences the catalog, rate source, payment gateway and mailer
// into the two checkout flows. It holds no per-order state.
type Service struct {
	courses  CourseFinder
	rates    RateSource
	gateway  PaymentGateway
	mailer   mailer.Sender
	events   EventPublisher
	operator string
	logger   *zap.Logger

	// background tracks notifications and events that outlive their request.
	background sync.WaitGroup
}

func NewService(
	courses CourseFinder,
	rateSource RateSource,
	paymentGateway PaymentGateway,
	sender mailer.Sender,
	events EventPublisher,
	operator string,
	logger *zap.Logger,
) *Service {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &Service{
		courses:  courses,
		rates:    rateSource,
		gateway:  paymentGateway,
		mailer:   sender,
		events:   events,
		operator: operator,
		logger:   logger,
	}
}

// CreateOrder prices the course in the requested currency and opens a
// gateway order for it. The gateway document is returned untouched.
func (s *Service) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (json.RawMessage, error) {
	course, ok := s.courses.Find(req.CourseID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, req.CourseID)
	}

	amount, currency := s.price(ctx, course.Price, req.Currency)

	order, err := s.gateway.CreateOrder(ctx, amount, currency, "Course ID: "+course.ID)
	if err != nil {
		s.logState(ctx, models.CheckoutStateFailed, zap.String("course_id", course.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(order, &created)

	s.logState(ctx, models.CheckoutStateCreated,
		zap.String("order_id", created.ID),
		zap.String("course_id", course.ID),
		zap.String("amount", amount.String()),
		zap.String("currency", currency),
	)
	middleware.RecordOrderCreated(currency)

	s.publish(ctx, models.CheckoutEvent{
		EventType:   kafka.EventOrderCreated,
		OrderID:     created.ID,
		CourseID:    course.ID,
		ProductName: course.Title,
		Amount:      amount,
		Currency:    currency,
		OccurredAt:  time.Now().UTC(),
	})

	return order, nil
}

// price converts a USD price. Any rate failure charges the USD price.
func (s *Service) price(ctx context.Context, usd decimal.Decimal, requested string) (decimal.Decimal, string) {
	currency := strings.ToUpper(strings.TrimSpace(requested))
	if currency == "" || currency == rates.BaseCurrency {
		return gateway.RoundAmount(usd, rates.BaseCurrency), rates.BaseCurrency
	}

	rate, err := s.rates.Rate(ctx, currency)
	if err != nil {
		middleware.RecordRateLookup("fallback")
		s.logger.Warn("Charging in USD, rate lookup failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("currency", currency),
			zap.Error(err),
		)
		return gateway.RoundAmount(usd, rates.BaseCurrency), rates.BaseCurrency
	}

	middleware.RecordRateLookup("success")
	return gateway.RoundAmount(usd.Mul(rate), currency), currency
}

// CaptureOrder captures an approved order. Only a COMPLETED capture
// notifies the operator, and that notification never delays the response.
// Repeated captures of one order are not deduplicated.
func (s *Service) CaptureOrder(ctx context.Context, orderID string, req models.CaptureOrderRequest) (json.RawMessage, error) {
	if !orderIDPattern.MatchString(orderID) {
		return nil, fmt.Errorf("%w: malformed order id %q", ErrValidation, orderID)
	}

	s.logState(ctx, models.CheckoutStateCaptureRequested, zap.String("order_id", orderID))

	capture, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		middleware.RecordPaymentCaptured("error")
		s.logState(ctx, models.CheckoutStateFailed, zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to capture order: %w", err)
	}

	var summary models.CaptureSummary
	if err := json.Unmarshal(capture, &summary); err != nil {
		s.logger.Warn("Capture response did not match the expected shape",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}

	if summary.Status != models.CaptureStatusCompleted {
		middleware.RecordPaymentCaptured(statusLabel(summary.Status))
		s.logState(ctx, models.CheckoutStateCaptureOther,
			zap.String("order_id", orderID),
			zap.String("status", summary.Status),
		)
		return capture, nil
	}

	middleware.RecordPaymentCaptured(summary.Status)
	s.logState(ctx, models.CheckoutStateCaptured, zap.String("order_id", orderID))

	productName := unknownProduct
	if course, ok := s.courses.Find(req.CourseID); ok {
		productName = course.Title
	}
	if summary.ID == "" {
		summary.ID = orderID
	}
	amount, _ := summary.CapturedAmount()

	msg, err := captureMessage(s.operator, captureDetails{
		Product:       productName,
		Amount:        amount.Value,
		Currency:      amount.CurrencyCode,
		OrderID:       summary.ID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		middleware.RecordNotification(kindCapture, "failed")
		s.logger.Error("Failed to render capture notification",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	} else {
		s.notifyAsync(ctx, kindCapture, msg)
	}

	paid, _ := decimal.NewFromString(amount.Value)
	s.publish(ctx, models.CheckoutEvent{
		EventType:     kafka.EventPaymentCaptured,
		OrderID:       summary.ID,
		CourseID:      req.CourseID,
		ProductName:   productName,
		Amount:        paid,
		Currency:      amount.CurrencyCode,
		Status:        summary.Status,
		CustomerEmail: req.CustomerEmail,
		OccurredAt:    time.Now().UTC(),
	})

	return capture, nil
}

// SubmitCryptoProof mails a proof of payment to the operator and waits for
// the relay to accept it.
func (s *Service) SubmitCryptoProof(ctx context.Context, proof models.CryptoProof) error {
	if len(proof.Content) == 0 {
		return fmt.Errorf("%w: proof of payment file is required", ErrValidation)
	}

	msg, err := cryptoMessage(s.operator, proof)
	if err != nil {
		return fmt.Errorf("failed to render crypto notification: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := s.mailer.Send(sendCtx, msg); err != nil {
		middleware.RecordNotification(kindCrypto, "failed")
		return fmt.Errorf("failed to send crypto notification: %w", err)
	}
	middleware.RecordNotification(kindCrypto, "sent")

	s.logger.Info("Crypto proof forwarded",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("product", proof.ProductName),
		zap.String("customer_email", proof.CustomerEmail),
		zap.Int("bytes", len(proof.Content)),
	)

	price, _ := decimal.NewFromString(proof.ProductPrice)
	s.publish(ctx, models.CheckoutEvent{
		EventType:     kafka.EventCryptoProofSubmitted,
		ProductName:   proof.ProductName,
		Amount:        price,
		Currency:      cryptoCurrency,
		CustomerEmail: proof.CustomerEmail,
		OccurredAt:    time.Now().UTC(),
	})
	return nil
}

// Wait blocks until background notifications and event publishes finish.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) notifyAsync(ctx context.Context, kind string, msg mailer.Message) {
	traceID := middleware.GetTraceID(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := s.mailer.Send(sendCtx, msg); err != nil {
			middleware.RecordNotification(kind, "failed")
			s.logger.Error("Failed to send notification",
				zap.String("trace_id", traceID),
				zap.String("kind", kind),
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		middleware.RecordNotification(kind, "sent")
	}()
}

func (s *Service) publish(ctx context.Context, event models.CheckoutEvent) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
			s.logger.Warn("Failed to publish checkout event",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) logState(ctx context.Context, state models.CheckoutState, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("state", string(state)),
	}, fields...)

	if state == models.CheckoutStateFailed {
		s.logger.Error("Checkout state", fields...)
		return
	}
	s.logger.Info("Checkout state", fields...)
}

func statusLabel(status string) string {
	if status == "" {
		return "UNKNOWN"
	}
	return status
}
