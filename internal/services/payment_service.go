// internal/services/payment_service.go
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/models"
)

// PaymentService talks to Stripe on behalf of the checkout surface. The order
// engine itself never calls the payment provider.
type PaymentService struct {
	verify    bool
	getIntent func(id string) (*stripe.PaymentIntent, error)
	newIntent func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
}

func NewPaymentService(cfg config.PaymentConfig) *PaymentService {
	// Initialize Stripe
	stripe.Key = cfg.StripeSecretKey

	return &PaymentService{
		verify: cfg.VerifyIntents,
		getIntent: func(id string) (*stripe.PaymentIntent, error) {
			return paymentintent.Get(id, nil)
		},
		newIntent: paymentintent.New,
	}
}

// VerifyIntent decides whether an order paid with intentID can be created as
// processing or has to wait for payment. With verification disabled every
// supplied intent counts as authorized.
func (s *PaymentService) VerifyIntent(_ context.Context, intentID string) (awaitPayment bool, err error) {
	if intentID == "" {
		return true, nil
	}
	if !s.verify {
		return false, nil
	}

	pi, err := s.getIntent(intentID)
	if err != nil {
		return false, apperrors.NewInvalidInput("failed to retrieve payment intent", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusRequiresCapture:
		return false, nil
	case stripe.PaymentIntentStatusCanceled:
		return false, apperrors.NewInvalidInput(fmt.Sprintf("payment intent %s was canceled", intentID), nil)
	default:
		logrus.WithFields(logrus.Fields{
			"payment_intent_id": intentID,
			"status":            pi.Status,
		}).Info("Payment intent not yet authorized, order will await payment")
		return true, nil
	}
}

// CreatePaymentIntent opens a Stripe intent for a pending order's total.
func (s *PaymentService) CreatePaymentIntent(_ context.Context, order *models.Order) (*PaymentIntentResponse, error) {
	if order.Status != models.OrderStatusPending {
		return nil, apperrors.NewInvalidTransition(string(order.Status), string(models.OrderStatusProcessing))
	}

	// Convert amount to cents for Stripe
	amountInCents := order.TotalAmount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("user_id", order.UserID.String())

	pi, err := s.newIntent(params)
	if err != nil {
		return nil, apperrors.NewPersistence("failed to create payment intent", err)
	}

	return &PaymentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Status:       string(pi.Status),
	}, nil
}
