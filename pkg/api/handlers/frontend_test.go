package handlers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFFT(t *testing.T) {
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}

	chunks := splitFFT(payload, 4)
	assert.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 25)
	assert.Equal(t, payload, bytes.Join(chunks, nil))
}

func TestSplitFFTUnevenLength(t *testing.T) {
	payload := make([]byte, 10)
	chunks := splitFFT(payload, 4)
	// Remainder lands in the final chunk.
	assert.Len(t, chunks, 4)
	assert.Len(t, chunks[3], 4)
	assert.Equal(t, payload, bytes.Join(chunks, nil))
}

func TestSplitFFTShortPayload(t *testing.T) {
	payload := []byte{1, 2}
	chunks := splitFFT(payload, 4)
	assert.Equal(t, [][]byte{payload}, chunks)
}
