// Package protocol defines the types shared between the hub, capture nodes,
// and frontends: the stream-kind enumeration, the SDR node configuration,
// and the control-connection message union with its XDR wire codec.
package protocol

import "fmt"

// StreamKind identifies the payload class a node produces on a data
// connection. It appears in request paths, the persisted archive, and the
// node configuration, so new kinds require coordinated changes on node,
// hub, and viewer.
type StreamKind string

const (
	StreamKindFFT    StreamKind = "fft"
	StreamKindZigBee StreamKind = "zigbee"
)

// FFTChunksPerTransfer is the number of equal-length frames every fft
// payload is split into before being forwarded to a viewer. The frontend
// visualizer sizes its receive buffers against this constant, so payload
// lengths must be divisible by it.
const FFTChunksPerTransfer = 4

// ParseStreamKind converts the textual form used in request paths.
func ParseStreamKind(s string) (StreamKind, error) {
	switch StreamKind(s) {
	case StreamKindFFT:
		return StreamKindFFT, nil
	case StreamKindZigBee:
		return StreamKindZigBee, nil
	default:
		return "", fmt.Errorf("unknown stream kind %q", s)
	}
}

func (k StreamKind) String() string {
	return string(k)
}
