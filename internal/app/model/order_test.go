package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"received to preparing", OrderStatusReceived, OrderStatusPreparing, true},
		{"received to cancelled", OrderStatusReceived, OrderStatusCancelled, true},
		{"received skips to delivered", OrderStatusReceived, OrderStatusDelivered, false},
		{"preparing to delivery", OrderStatusPreparing, OrderStatusOutForDelivery, true},
		{"preparing to pickup", OrderStatusPreparing, OrderStatusReadyForPickup, true},
		{"preparing straight to completed", OrderStatusPreparing, OrderStatusCompleted, false},
		{"delivery to delivered", OrderStatusOutForDelivery, OrderStatusDelivered, true},
		{"pickup to completed", OrderStatusReadyForPickup, OrderStatusCompleted, true},
		{"delivered to completed", OrderStatusDelivered, OrderStatusCompleted, true},
		{"no backward edge", OrderStatusPreparing, OrderStatusReceived, false},
		{"completed is terminal", OrderStatusCompleted, OrderStatusCancelled, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusPreparing, false},
		{"unknown source", OrderStatus("SHIPPED"), OrderStatusDelivered, false},
		{"unknown target", OrderStatusReceived, OrderStatus("SHIPPED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusReceived.IsTerminal())
	assert.False(t, OrderStatusPreparing.IsTerminal())
	assert.False(t, OrderStatusOutForDelivery.IsTerminal())
	assert.False(t, OrderStatusReadyForPickup.IsTerminal())
	assert.False(t, OrderStatusDelivered.IsTerminal())
}

func TestEveryNonTerminalStatusCanCancel(t *testing.T) {
	for from := range allowedTransitions {
		assert.True(t, CanTransition(from, OrderStatusCancelled),
			"expected %s to allow cancellation", from)
	}
}
