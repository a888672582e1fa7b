package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/AlexJ236/Impulso-Digital/middleware"
	"github.com/AlexJ236/Impulso-Digital/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const tracerName = "storefront"

type OrderService interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (json.RawMessage, error)
	CaptureOrder(ctx context.Context, orderID string, req models.CaptureOrderRequest) (json.RawMessage, error)
	SubmitCryptoProof(ctx context.Context, proof models.CryptoProof) error
}

type OrderHandler struct {
	orders OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	span.SetAttributes(
		attribute.String("course.id", req.CourseID),
		attribute.String("order.currency", req.Currency),
	)

	order, err := h.orders.CreateOrder(ctx, req)
	if err != nil {
		respondError(c, span, h.logger, "Create order", err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", order)
}

func (h *OrderHandler) CaptureOrder(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "CaptureOrder")
	defer span.End()

	orderID := c.Param("orderID")
	span.SetAttributes(attribute.String("order.id", orderID))

	// The buyer has already approved the payment, so an unreadable body
	// only costs the notification its customer details.
	var req models.CaptureOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Ignoring unreadable capture body",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		req = models.CaptureOrderRequest{}
	}

	capture, err := h.orders.CaptureOrder(ctx, orderID, req)
	if err != nil {
		respondError(c, span, h.logger, "Capture order", err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", capture)
}

func (h *OrderHandler) SubmitCryptoPayment(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "SubmitCryptoPayment")
	defer span.End()

	proof, err := readCryptoProof(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	span.SetAttributes(
		attribute.String("product.name", proof.ProductName),
		attribute.Int("proof.bytes", len(proof.Content)),
	)

	if err := h.orders.SubmitCryptoProof(ctx, proof); err != nil {
		respondError(c, span, h.logger, "Submit crypto proof", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Proof of payment received. We will verify it and grant access shortly."})
}

const maxFieldBytes = 64 << 10

var errFieldTooLarge = errors.New("form field too large")

// readCryptoProof walks the multipart body part by part so the proof is only
// ever held in memory. A missing proof part leaves Content empty.
func readCryptoProof(r *http.Request) (models.CryptoProof, error) {
	var proof models.CryptoProof

	reader, err := r.MultipartReader()
	if err != nil {
		return proof, err
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return proof, nil
		}
		if err != nil {
			return proof, err
		}

		if part.FormName() == "proof" && part.FileName() != "" {
			proof.Filename = part.FileName()
			proof.Content, err = io.ReadAll(part)
			part.Close()
			if err != nil {
				return proof, err
			}
			continue
		}

		value, err := readField(part)
		part.Close()
		if err != nil {
			return proof, err
		}
		switch part.FormName() {
		case "customerName":
			proof.CustomerName = value
		case "customerEmail":
			proof.CustomerEmail = value
		case "productName":
			proof.ProductName = value
		case "productPrice":
			proof.ProductPrice = value
		}
	}
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxFieldBytes {
		return "", errFieldTooLarge
	}
	return string(data), nil
}
