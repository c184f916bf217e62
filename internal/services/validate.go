package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// supportedCurrencies lists the ISO 4217 codes orders may be priced in.
var supportedCurrencies = map[string]struct{}{
	"USD": {},
	"EUR": {},
	"GBP": {},
	"JPY": {},
	"CHF": {},
}

const (
	maxOrderItems = 100
	maxSKULength  = 64
)

// validateCreateOrder checks CreateOrderInput before anything touches a port.
// The first failed rule wins; messages are caller-facing.
func validateCreateOrder(input CreateOrderInput) error {
	if input.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return fmt.Errorf("currency is required")
	}
	if _, ok := supportedCurrencies[currency]; !ok {
		return fmt.Errorf("unsupported currency: %s", currency)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("order requires at least one item")
	}
	if len(input.Items) > maxOrderItems {
		return fmt.Errorf("order exceeds %d items", maxOrderItems)
	}
	for i, item := range input.Items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			return fmt.Errorf("items[%d]: sku is required", i)
		}
		if len(sku) > maxSKULength {
			return fmt.Errorf("items[%d]: sku exceeds %d characters", i, maxSKULength)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("items[%d]: quantity must be positive", i)
		}
		if item.UnitPriceMinor <= 0 {
			return fmt.Errorf("items[%d]: unit price must be positive", i)
		}
	}
	return nil
}

// normalizeCurrency returns the canonical upper-case code.
func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
