//go:build !pcap
// +build !pcap

package device

import (
	"context"
	"fmt"

	"github.com/kestrel-vision/followspot/internal/vision"
)

// ReplayPCAP is a stub implementation when capture replay is disabled
// Build with -tags=pcap to enable capture file reading
func ReplayPCAP(ctx context.Context, path string, udpPort int, handle func([]byte) error) error {
	return fmt.Errorf("capture replay not enabled: rebuild with -tags=pcap to enable capture file reading")
}

// ReplayPCAPFrames is a stub implementation when capture replay is disabled
// Build with -tags=pcap to enable capture file reading
func ReplayPCAPFrames(ctx context.Context, path string, udpPort, size int) ([]*vision.Frame, error) {
	return nil, fmt.Errorf("capture replay not enabled: rebuild with -tags=pcap to enable capture file reading")
}
