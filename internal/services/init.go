// Package services contains application use case orchestration. Services own
// their ports; adapters are bound in the composition root.
package services

import "github.com/google/wire"

// ProviderSet is services providers.
var ProviderSet = wire.NewSet(
	NewOrderCommandService,
	NewOrderQueryService,
)
