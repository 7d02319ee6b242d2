package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rescue-ranger/internal/config"
	"rescue-ranger/internal/pipeline"
)

type fakeIngestor struct {
	lastRaw *pipeline.RawReading
	err     error
}

func (f *fakeIngestor) Submit(ctx context.Context, raw *pipeline.RawReading) (*pipeline.IngestResult, error) {
	f.lastRaw = raw
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.IngestResult{Accepted: true, Emergency: false}, nil
}

func TestHandleMessage(t *testing.T) {
	ingestor := &fakeIngestor{}
	c := NewConsumer(&config.MQTTConfig{Topic: "rescue/readings/+"}, nil, ingestor, zap.NewNop())

	payload := []byte(`{"heartRate":75,"spO2":98,"location":{"latitude":31.23,"longitude":121.47}}`)
	err := c.handleMessage("rescue/readings/device-123", payload)
	require.NoError(t, err)

	require.NotNil(t, ingestor.lastRaw)
	// deviceId 从主题补齐
	assert.Equal(t, "device-123", ingestor.lastRaw.DeviceID)
	require.NotNil(t, ingestor.lastRaw.HeartRate)
	assert.Equal(t, 75, *ingestor.lastRaw.HeartRate)
}

func TestHandleMessage_BodyDeviceIDWins(t *testing.T) {
	ingestor := &fakeIngestor{}
	c := NewConsumer(&config.MQTTConfig{Topic: "rescue/readings/+"}, nil, ingestor, zap.NewNop())

	payload := []byte(`{"deviceId":"device-999","heartRate":75,"spO2":98,"location":{"latitude":1,"longitude":1}}`)
	require.NoError(t, c.handleMessage("rescue/readings/device-123", payload))

	assert.Equal(t, "device-999", ingestor.lastRaw.DeviceID)
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	ingestor := &fakeIngestor{}
	c := NewConsumer(&config.MQTTConfig{Topic: "rescue/readings/+"}, nil, ingestor, zap.NewNop())

	err := c.handleMessage("rescue/readings/device-123", []byte("{not json"))
	assert.Error(t, err)
	assert.Nil(t, ingestor.lastRaw)
}

func TestDeviceIDFromTopic(t *testing.T) {
	assert.Equal(t, "device-123", deviceIDFromTopic("rescue/readings/device-123"))
	assert.Equal(t, "", deviceIDFromTopic("rescue/readings/"))
	assert.Equal(t, "", deviceIDFromTopic("noslash"))
}
