package repositories

import (
	"github.com/avelinor/orders-service/internal/services"

	"github.com/google/wire"
)

// ProviderSet binds the Postgres adapters to the ports owned by services.
var ProviderSet = wire.NewSet(
	NewOrderRepository,
	NewOutboxRepository,
	wire.Bind(new(services.OrderCommandRepo), new(*OrderRepository)),
	wire.Bind(new(services.OrderQueryRepo), new(*OrderRepository)),
	wire.Bind(new(services.OutboxWriter), new(*OutboxRepository)),
)
