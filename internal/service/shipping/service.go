// Package shipping merges backend shipping options with live carrier quotes.
package shipping

import (
	"context"
	"fmt"

	"storefront-core/internal/domain"
	"storefront-core/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type optionsGateway interface {
	ListShippingOptions(ctx context.Context, cartID, token string) ([]domain.ShippingOption, error)
	QuoteShippingRates(ctx context.Context, cartID string, mode domain.PaymentMode, token string) ([]domain.RateQuote, error)
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Service struct {
	gateway optionsGateway
	tokens  tokenSource
	logger  *zap.Logger
}

func New(gw optionsGateway, tokens tokenSource, logger *zap.Logger) *Service {
	return &Service{gateway: gw, tokens: tokens, logger: logging.OrNop(logger)}
}

// GetShippingOptions lists the cart's shipping options, priced with live
// carrier quotes where one is available. A failed quote is not an error.
func (s *Service) GetShippingOptions(ctx context.Context, cartID string, mode domain.PaymentMode) ([]domain.ShippingOption, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown payment mode %q", mode)
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var (
		options []domain.ShippingOption
		quotes  []domain.RateQuote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		options, err = s.gateway.ListShippingOptions(gctx, cartID, token)
		return err
	})
	g.Go(func() error {
		q, err := s.gateway.QuoteShippingRates(gctx, cartID, mode, token)
		if err != nil {
			s.logger.Warn("live shipping quote unavailable", zap.String("cart_id", cartID), zap.String("mode", string(mode)), zap.Error(err))
			return nil
		}
		quotes = q
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list shipping options: %w", err)
	}
	if len(options) == 0 {
		return []domain.ShippingOption{}, nil
	}
	return Merge(options, quotes), nil
}

// Merge overrides price and label of standard and express options with the
// matching quote. IDs and the option set always come from the backend.
func Merge(options []domain.ShippingOption, quotes []domain.RateQuote) []domain.ShippingOption {
	byType := make(map[string]domain.RateQuote, len(quotes))
	for _, q := range quotes {
		if _, seen := byType[q.Type]; q.Type != "" && !seen {
			byType[q.Type] = q
		}
	}

	out := make([]domain.ShippingOption, 0, len(options))
	for _, opt := range options {
		code := opt.TypeCode()
		if code == domain.ShippingTypeStandard || code == domain.ShippingTypeExpress {
			if q, ok := byType[code]; ok {
				opt = applyQuote(opt, code, q)
			}
		}
		out = append(out, opt)
	}
	return out
}

func applyQuote(opt domain.ShippingOption, code string, q domain.RateQuote) domain.ShippingOption {
	meta := make(map[string]interface{}, len(opt.Metadata)+3)
	for k, v := range opt.Metadata {
		meta[k] = v
	}
	if q.ETA != "" {
		meta[domain.MetaETA] = q.ETA
	}
	if q.ETADays > 0 {
		meta[domain.MetaETADays] = q.ETADays
	}
	meta[domain.MetaQuoted] = true

	opt.Amount = q.Amount
	opt.Name = label(code, q)
	opt.Metadata = meta
	return opt
}

func label(code string, q domain.RateQuote) string {
	base := "Standard Delivery"
	if code == domain.ShippingTypeExpress {
		base = "Express Delivery"
	}
	eta := q.ETA
	switch {
	case eta != "":
	case q.ETADays == 1:
		eta = "1 day"
	case q.ETADays > 1:
		eta = fmt.Sprintf("%d days", q.ETADays)
	default:
		return base
	}
	return fmt.Sprintf("%s (%s)", base, eta)
}
