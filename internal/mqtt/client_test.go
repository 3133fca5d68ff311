package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safecity/safecity-go/internal/alert"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/threat"
)

func mqttSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Main.Name = "safecity-test"
	settings.Alert.MQTT.Enabled = true
	settings.Alert.MQTT.Broker = "tcp://localhost:1883"
	settings.Alert.MQTT.Topic = "safecity/alerts"
	return settings
}

func TestNewClientRequiresBrokerAndTopic(t *testing.T) {
	t.Parallel()

	missingBroker := mqttSettings()
	missingBroker.Alert.MQTT.Broker = ""
	_, err := NewClient(missingBroker)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	missingTopic := mqttSettings()
	missingTopic.Alert.MQTT.Topic = ""
	_, err = NewClient(missingTopic)
	require.Error(t, err)
}

func TestNotifyWithoutConnectionFails(t *testing.T) {
	t.Parallel()

	client, err := NewClient(mqttSettings())
	require.NoError(t, err)
	assert.Equal(t, "mqtt", client.Name())
	assert.False(t, client.IsConnected())

	err = client.Notify(context.Background(), alert.Event{
		Level:     threat.LevelWeapon,
		Profile:   alert.ProfileFor(threat.LevelWeapon),
		Kind:      threat.InputVideo,
		Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTT))
}

func TestConnectRejectsInvalidBrokerHost(t *testing.T) {
	t.Parallel()

	settings := mqttSettings()
	settings.Alert.MQTT.Broker = "tcp://host.invalid:1883"
	client, err := NewClient(settings)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestDisconnectWithoutConnectIsSafe(t *testing.T) {
	t.Parallel()

	client, err := NewClient(mqttSettings())
	require.NoError(t, err)
	client.Disconnect()
}
