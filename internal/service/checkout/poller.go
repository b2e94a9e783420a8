package checkout

import (
	"context"
	"fmt"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/logging"

	"go.uber.org/zap"
)

const (
	DefaultPollAttempts = 20
	DefaultPollDelay    = 1500 * time.Millisecond
)

type cartFetcher interface {
	GetCart(ctx context.Context, cartID, token string) (*domain.Cart, error)
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Poller waits for the payment provider's verdict by re-reading the cart.
type Poller struct {
	carts       cartFetcher
	tokens      tokenSource
	maxAttempts int
	delay       time.Duration
	logger      *zap.Logger
}

func NewPoller(carts cartFetcher, tokens tokenSource, maxAttempts int, delay time.Duration, logger *zap.Logger) *Poller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollAttempts
	}
	if delay < 0 {
		delay = DefaultPollDelay
	}
	return &Poller{carts: carts, tokens: tokens, maxAttempts: maxAttempts, delay: delay, logger: logging.OrNop(logger)}
}

// Await fetches the cart right away and then every delay until a session or the
// collection reports success or failure. Fetch errors use up an attempt.
func (p *Poller) Await(ctx context.Context, cartID string) (*domain.Cart, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cart, err := p.carts.GetCart(ctx, cartID, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("payment status fetch failed", zap.String("cart_id", cartID), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if cart.PaymentCollection == nil {
			continue
		}
		status := cart.PaymentCollection.Resolve()
		switch {
		case status.IsSuccess():
			p.logger.Info("payment confirmed", zap.String("cart_id", cartID), zap.Int("attempt", attempt), zap.String("status", string(status)))
			return cart, nil
		case status.IsFailure():
			return nil, &PaymentFailedError{CartID: cartID, Status: status}
		}
	}
	return nil, ErrPaymentTimeout
}
