package database

import "github.com/google/wire"

// ProviderSet exposes the connection pool constructor for Wire graphs.
var ProviderSet = wire.NewSet(
	NewPgxPool,
)
