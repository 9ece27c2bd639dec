package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/api/handler/v1/request"
	"github.com/attendly/attendly/internal/api/handler/v1/response"
	"github.com/attendly/attendly/internal/config"
	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/service"
)

type TicketingService interface {
	Purchase(ctx context.Context, eventID, categoryID uint, quantity int, ownerName, ownerEmail string) (service.PurchaseResult, error)
	ConfirmPayment(ctx context.Context, paymentRef string) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, id uint) (domain.Ticket, error)
	BackfillCodes(ctx context.Context, eventID uint) (int, error)
}

type TicketingHandler struct {
	conf *config.StripeConfig
	svc  TicketingService
}

func NewTicketingHandler(conf *config.StripeConfig, svc TicketingService) *TicketingHandler {
	if conf != nil && conf.SecretKey != "" {
		stripe.Key = conf.SecretKey
	}

	return &TicketingHandler{
		conf: conf,
		svc:  svc,
	}
}

type purchaseResponse struct {
	service.PurchaseResult
	ClientSecret string `json:"client_secret,omitempty"`
}

func (h *TicketingHandler) HandlePurchase(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	var req request.PurchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.Purchase(ctx.Request.Context(), eventID, req.CategoryID, req.Quantity, req.OwnerName, req.OwnerEmail)
	if err != nil {
		var elig *domain.EligibilityError
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound(service.ErrEventNotFound))
		case errors.Is(err, service.ErrWrongEventMode), errors.Is(err, service.ErrInvalidQuantity):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		case errors.Is(err, service.ErrCapacityExceeded):
			response.RenderErr(ctx, response.ErrConflict(service.ErrCapacityExceeded))
		case errors.As(err, &elig):
			response.RenderErr(ctx, response.ErrConflict(elig))
		default:
			err = fmt.Errorf("v1.HandlePurchase -> h.svc.Purchase -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	resp := purchaseResponse{PurchaseResult: result}

	if h.conf != nil && h.conf.SecretKey != "" {
		clientSecret, piErr := h.createPaymentIntent(result)
		if piErr != nil {
			err = fmt.Errorf("v1.HandlePurchase -> h.createPaymentIntent -> %w", piErr)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
			return
		}
		resp.ClientSecret = clientSecret
	}

	ctx.JSON(http.StatusCreated, resp)
}

// createPaymentIntent opens the Stripe payment for a reservation. The
// payment reference travels in the intent metadata and comes back in the
// webhook, which is what ties the callback to the reservation.
func (h *TicketingHandler) createPaymentIntent(result service.PurchaseResult) (string, error) {
	var total int64
	currency := "eur"
	for _, t := range result.Tickets {
		total += int64(t.PriceCents)
		if t.Currency != "" {
			currency = t.Currency
		}
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(total),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("payment_ref", result.PaymentRef)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}

	return pi.ClientSecret, nil
}

// HandlePaymentWebhook consumes Stripe's payment_intent.succeeded events.
// Signature verification rejects anything Stripe did not sign; delivery
// is at-least-once, which ConfirmPayment absorbs.
func (h *TicketingHandler) HandlePaymentWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<16))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), h.conf.WebhookSecret)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid webhook signature -> %w", err)))
		return
	}

	if event.Type != "payment_intent.succeeded" {
		ctx.Status(http.StatusOK)
		return
	}

	var intent stripe.PaymentIntent
	if err = json.Unmarshal(event.Data.Raw, &intent); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	paymentRef := intent.Metadata["payment_ref"]
	if paymentRef == "" {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("payment intent carries no payment_ref")))
		return
	}

	tickets, err := h.svc.ConfirmPayment(ctx.Request.Context(), paymentRef)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			response.RenderErr(ctx, response.ErrNotFound(service.ErrReservationNotFound))
		case errors.Is(err, service.ErrReservationExpired):
			// The seats are gone; acknowledge so Stripe stops retrying, but
			// flag it loudly for a manual refund.
			zap.L().Error("payment confirmed for an expired reservation",
				zap.String("payment_ref", paymentRef),
			)
			ctx.Status(http.StatusOK)
		default:
			err = fmt.Errorf("v1.HandlePaymentWebhook -> h.svc.ConfirmPayment -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	zap.L().Info("payment confirmed",
		zap.String("payment_ref", paymentRef),
		zap.Int("tickets", len(tickets)),
	)
	ctx.Status(http.StatusOK)
}

func (h *TicketingHandler) HandleGetTicket(ctx *gin.Context) {
	ticketID, ok := parseUintParam(ctx, "ticketID")
	if !ok {
		return
	}

	ticket, err := h.svc.GetTicket(ctx.Request.Context(), ticketID)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			response.RenderErr(ctx, response.ErrNotFound(service.ErrTicketNotFound))
			return
		}

		err = fmt.Errorf("v1.HandleGetTicket -> h.svc.GetTicket -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, ticket)
}

func (h *TicketingHandler) HandleBackfillCodes(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	filled, err := h.svc.BackfillCodes(ctx.Request.Context(), eventID)
	if err != nil {
		err = fmt.Errorf("v1.HandleBackfillCodes -> h.svc.BackfillCodes -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.BackfillResponse{Filled: filled})
}
