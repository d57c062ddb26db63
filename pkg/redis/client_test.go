package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "debase:notification", Channel(TopicNotification))
	assert.Equal(t, "debase:snapshot", Channel(TopicSnapshot))
	assert.Equal(t, "debase:*", Pattern())
	assert.Equal(t, "debase:notification:log", LogStream())
}

func TestTopicFromChannel(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		expected string
	}{
		{name: "notification", channel: "debase:notification", expected: TopicNotification},
		{name: "snapshot", channel: "debase:snapshot", expected: TopicSnapshot},
		{name: "foreign prefix", channel: "other:snapshot", expected: ""},
		{name: "too many parts", channel: "debase:notification:log", expected: ""},
		{name: "empty topic", channel: "debase:", expected: ""},
		{name: "empty channel", channel: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TopicFromChannel(tt.channel))
		})
	}
}
