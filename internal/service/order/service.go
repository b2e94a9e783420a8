// Package order reads the customer's order history and files returns.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"storefront-core/internal/domain"
	"storefront-core/internal/gateway"
	"storefront-core/internal/logging"

	"go.uber.org/zap"
)

// ErrReturnNotAllowed is returned for orders that have not been delivered.
var ErrReturnNotAllowed = errors.New("return not allowed for this order")

const defaultPageSize = 50

type orderGateway interface {
	ListOrders(ctx context.Context, params gateway.ListOrdersParams, token string) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID, token string) (*domain.Order, error)
	CreateReturn(ctx context.Context, req domain.ReturnRequest, token string) (*domain.Return, error)
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Service struct {
	gateway orderGateway
	tokens  tokenSource
	logger  *zap.Logger

	mu     sync.Mutex
	orders []domain.Order
}

func New(gw orderGateway, tokens tokenSource, logger *zap.Logger) *Service {
	return &Service{gateway: gw, tokens: tokens, logger: logging.OrNop(logger)}
}

// FetchOrders loads the customer's orders, newest first. Guests have none.
func (s *Service) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		s.setOrders(nil)
		return []domain.Order{}, nil
	}
	orders, err := s.gateway.ListOrders(ctx, gateway.ListOrdersParams{Limit: defaultPageSize}, token)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	s.setOrders(orders)
	return s.Orders(), nil
}

// Orders returns the last fetched list.
func (s *Service) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Order{}, s.orders...)
}

func (s *Service) setOrders(orders []domain.Order) {
	s.mu.Lock()
	s.orders = append([]domain.Order(nil), orders...)
	s.mu.Unlock()
}

func (s *Service) RetrieveOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.ErrNotFound
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	order, err := s.gateway.GetOrder(ctx, orderID, token)
	if err != nil {
		if gateway.IsNotFound(err) {
			return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, err
	}
	return order, nil
}

// CreateReturn files a return for delivered items. Eligibility and item
// quantities are checked before anything is sent.
func (s *Service) CreateReturn(ctx context.Context, orderID string, items []domain.ReturnItem, reason string) (*domain.Return, error) {
	order, err := s.RetrieveOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsDelivered() {
		return nil, fmt.Errorf("%w: fulfillment status %q", ErrReturnNotAllowed, order.FulfillmentStatus)
	}
	if err := validateReturnItems(*order, items); err != nil {
		return nil, err
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	ret, err := s.gateway.CreateReturn(ctx, domain.ReturnRequest{
		OrderID: order.ID,
		Items:   items,
		Reason:  strings.TrimSpace(reason),
	}, token)
	if err != nil {
		return nil, fmt.Errorf("create return: %w", err)
	}
	s.logger.Info("return requested", zap.String("order_id", order.ID), zap.String("return_id", ret.ID))
	return ret, nil
}

func validateReturnItems(order domain.Order, items []domain.ReturnItem) error {
	if len(items) == 0 {
		return &domain.ValidationError{Subject: "return", Fields: map[string]string{"items": "required"}}
	}
	ordered := make(map[string]int, len(order.Items))
	for _, li := range order.Items {
		ordered[li.ID] += li.Quantity
	}
	requested := make(map[string]int, len(items))
	fields := map[string]string{}
	for _, item := range items {
		limit, ok := ordered[item.LineItemID]
		switch {
		case !ok:
			fields[item.LineItemID] = "not_in_order"
		case item.Quantity <= 0:
			fields[item.LineItemID] = "quantity"
		default:
			requested[item.LineItemID] += item.Quantity
			if requested[item.LineItemID] > limit {
				fields[item.LineItemID] = "exceeds_ordered"
			}
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Subject: "return", Fields: fields}
	}
	return nil
}
