package capture

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBlock(sample int16, frames int) []byte {
	buf := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func TestConsumeComputesScaledAverage(t *testing.T) {
	t.Parallel()

	ac := &audioCapture{}
	ac.consume(pcmBlock(16384, 128), 128)

	feature, err := ac.Snapshot()
	require.NoError(t, err)
	// 16384/32768 of full scale maps to half of 255.
	assert.InDelta(t, 127.5, feature.Volume, 0.5)
}

func TestConsumeSmoothsAcrossBlocks(t *testing.T) {
	t.Parallel()

	ac := &audioCapture{}
	ac.consume(pcmBlock(16384, 64), 64)
	ac.consume(pcmBlock(0, 64), 64)

	feature, err := ac.Snapshot()
	require.NoError(t, err)
	// A silent block must not zero the rolling average outright.
	assert.Greater(t, feature.Volume, 50.0)
	assert.Less(t, feature.Volume, 127.5)
}

func TestConsumePublishesLevelWithoutBlocking(t *testing.T) {
	t.Parallel()

	levels := make(chan LevelData, 1)
	ac := &audioCapture{levelChan: levels}

	ac.consume(pcmBlock(32700, 32), 32)

	select {
	case data := <-levels:
		assert.True(t, data.Clipping)
		assert.Positive(t, data.Level)
	default:
		t.Fatal("expected a level sample")
	}

	// Fill the channel, further sends must be dropped, not block.
	levels <- LevelData{}
	ac.consume(pcmBlock(100, 32), 32)
}

func TestConsumeIgnoresEmptyBlocks(t *testing.T) {
	t.Parallel()

	ac := &audioCapture{}
	ac.consume(nil, 0)

	feature, err := ac.Snapshot()
	require.NoError(t, err)
	assert.Zero(t, feature.Volume)
}
