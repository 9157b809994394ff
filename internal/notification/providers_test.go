package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendsync/attendance-monitor/internal/conf"
)

func TestShoutrrrProvider_ValidateConfig(t *testing.T) {
	t.Parallel()

	p := NewShoutrrrProvider(conf.PushSettings{Enabled: true})
	require.Error(t, p.ValidateConfig())

	p = NewShoutrrrProvider(conf.PushSettings{Enabled: true, URLs: []string{"nosuchservice://token@host"}})
	err := p.ValidateConfig()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token@")
}

func TestShoutrrrProvider_Accepts(t *testing.T) {
	t.Parallel()

	p := NewShoutrrrProvider(conf.PushSettings{MinPriority: "high"})
	assert.False(t, p.Accepts(NewNotification(TypeInfo, PriorityMedium, "", "")))
	assert.True(t, p.Accepts(NewNotification(TypeError, PriorityCritical, "", "")))

	defaults := NewShoutrrrProvider(conf.PushSettings{})
	assert.True(t, defaults.Accepts(NewNotification(TypeInfo, PriorityMedium, "", "")))
	assert.False(t, defaults.Accepts(NewNotification(TypeInfo, PriorityLow, "", "")))
}

func TestMQTTProvider_ValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		broker  string
		topic   string
		wantErr bool
	}{
		{"valid tcp", "tcp://localhost:1883", "attendance/batches", false},
		{"valid ssl", "ssl://broker.example.com:8883", "t", false},
		{"bad scheme", "http://localhost:1883", "t", true},
		{"no host", "tcp://", "t", true},
		{"no topic", "tcp://localhost:1883", " ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewMQTTProvider(conf.MQTTSettings{Broker: tt.broker, Topic: tt.topic}, "test", nil, testLogger())
			err := p.ValidateConfig()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMQTTProvider_Accepts(t *testing.T) {
	t.Parallel()

	p := NewMQTTProvider(conf.MQTTSettings{}, "test", nil, testLogger())
	assert.True(t, p.Accepts(event(TypeInfo, PriorityLow, "monitor", EventBatchCompleted, "", "")))
	assert.True(t, p.Accepts(event(TypeError, PriorityHigh, "processor", EventFileError, "", "")))
	assert.False(t, p.Accepts(event(TypeSystem, PriorityLow, "app", EventAppStarted, "", "")))
	assert.False(t, p.Accepts(NewNotification(TypeInfo, PriorityLow, "", "")))
	assert.NoError(t, p.Close())
}
