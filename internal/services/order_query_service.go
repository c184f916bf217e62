package services

import (
	"context"
	"fmt"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/models/vo"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	defaultPageSize int32 = 20
	maxPageSize     int32 = 100
)

// OrderQueryService owns the read-side use cases.
type OrderQueryService struct {
	repo      OrderQueryRepo
	txManager txmanager.Manager
	log       *log.Helper
}

// NewOrderQueryService constructs the read-side service.
func NewOrderQueryService(repo OrderQueryRepo, tx txmanager.Manager, logger log.Logger) *OrderQueryService {
	return &OrderQueryService{
		repo:      repo,
		txManager: tx,
		log:       log.NewHelper(logger),
	}
}

// GetOrder loads one order with its items.
func (s *OrderQueryService) GetOrder(ctx context.Context, orderID uuid.UUID) (*vo.OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, errors.BadRequest(ReasonOrderInvalid, "order_id is required")
	}

	var order *po.Order
	err := s.txManager.WithinReadOnlyTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		var repoErr error
		order, repoErr = s.repo.FindByID(txCtx, sess, orderID)
		return repoErr
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, errors.NotFound(ReasonOrderNotFound, "order not found")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.WithContext(ctx).Warnf("get order timeout: order_id=%s", orderID)
			return nil, errors.GatewayTimeout(ReasonQueryTimeout, "query timeout")
		}
		s.log.WithContext(ctx).Errorf("get order failed: order_id=%s err=%v", orderID, err)
		return nil, errors.InternalServer(ReasonOrderQueryFailed, "failed to query order").WithCause(fmt.Errorf("find order by id: %w", err))
	}

	s.log.WithContext(ctx).Debugf("GetOrder: order_id=%s status=%s", order.OrderID, order.Status)
	return vo.NewOrderDetail(order), nil
}

// ListOrders returns a page of order summaries matching the filter.
func (s *OrderQueryService) ListOrders(ctx context.Context, filter ListOrdersFilter) (*vo.OrderPage, error) {
	filter.Limit = clampPageSize(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var rows []*po.Order
	var total int64
	err := s.txManager.WithinReadOnlyTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		var repoErr error
		rows, total, repoErr = s.repo.List(txCtx, sess, filter)
		return repoErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.WithContext(ctx).Warnf("list orders timeout")
			return nil, errors.GatewayTimeout(ReasonQueryTimeout, "query timeout")
		}
		s.log.WithContext(ctx).Errorf("list orders failed: err=%v", err)
		return nil, errors.InternalServer(ReasonOrderQueryFailed, "failed to list orders").WithCause(fmt.Errorf("list orders: %w", err))
	}

	summaries := make([]vo.OrderSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, vo.NewOrderSummary(row))
	}
	return &vo.OrderPage{Orders: summaries, Total: total}, nil
}

func clampPageSize(limit int32) int32 {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
