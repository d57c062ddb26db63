package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestCalculateNextBackoff tests the exponential backoff calculation with jitter
func TestCalculateNextBackoff(t *testing.T) {
	tests := []struct {
		name         string
		current      time.Duration
		max          time.Duration
		factor       float64
		jitterFactor float64
		expectMin    time.Duration
		expectMax    time.Duration
	}{
		{
			name:         "initial backoff doubles",
			current:      1 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    1800 * time.Millisecond,
			expectMax:    2200 * time.Millisecond,
		},
		{
			name:         "respects maximum",
			current:      20 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    27 * time.Second,
			expectMax:    30 * time.Second,
		},
		{
			name:         "no jitter produces exact value",
			current:      5 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.0,
			expectMin:    10 * time.Second,
			expectMax:    10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				result := calculateNextBackoff(tt.current, tt.max, tt.factor, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.expectMin)
				assert.LessOrEqual(t, result, tt.expectMax)
			}
		})
	}
}

func TestClientSubscriptions(t *testing.T) {
	t.Run("subscribe and check", func(t *testing.T) {
		subs := newClientSubscriptions()
		subs.subscribe("notification")
		assert.True(t, subs.isSubscribed("notification"))
		assert.False(t, subs.isSubscribed("snapshot"))
	})

	t.Run("wildcard subscription", func(t *testing.T) {
		subs := newClientSubscriptions()
		subs.subscribe("*")
		assert.True(t, subs.isSubscribed("notification"))
		assert.True(t, subs.isSubscribed("snapshot"))
	})

	t.Run("unsubscribe", func(t *testing.T) {
		subs := newClientSubscriptions()
		subs.subscribe("snapshot")
		subs.unsubscribe("snapshot")
		assert.False(t, subs.isSubscribed("snapshot"))
	})
}

func TestValidTopic(t *testing.T) {
	assert.True(t, validTopic("*"))
	assert.True(t, validTopic("notification"))
	assert.True(t, validTopic("snapshot"))
	assert.False(t, validTopic(""))
	assert.False(t, validTopic("block.indexed"))
}
