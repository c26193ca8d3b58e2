//go:build pcap
// +build pcap

package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// ReplayPCAP reads a capture file and feeds every UDP payload destined
// for udpPort to handle, in capture order. The reader is pure Go, so
// the port filter is applied per packet rather than through a BPF
// program. Only available when building with the 'pcap' build tag.
func ReplayPCAP(ctx context.Context, path string, udpPort int, handle func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read capture file %s: %w", path, err)
	}

	packetCount := 0
	matched := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("capture replay stopping due to context cancellation (processed %d packets)", packetCount)
			return ctx.Err()
		default:
		}

		data, _, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			elapsed := time.Since(startTime)
			monitoring.Logf("capture replay complete: %d packets read, %d matched port %d in %v",
				packetCount, matched, udpPort, elapsed)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet %d: %w", packetCount+1, err)
		}
		packetCount++

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || int(udp.DstPort) != udpPort {
			continue
		}
		payload := udp.Payload
		if len(payload) == 0 {
			continue
		}
		matched++

		if err := handle(payload); err != nil {
			monitoring.Logf("error handling capture packet %d: %v", packetCount, err)
		}

		if packetCount%10000 == 0 {
			elapsed := time.Since(startTime)
			monitoring.Logf("capture replay progress: %d packets in %v", packetCount, elapsed)
		}
	}
}

// ReplayPCAPFrames assembles the frame stream recorded in a capture
// file and returns every completed frame, in order.
func ReplayPCAPFrames(ctx context.Context, path string, udpPort, size int) ([]*vision.Frame, error) {
	assembler := NewFrameAssembler(size)
	var frames []*vision.Frame
	err := ReplayPCAP(ctx, path, udpPort, func(payload []byte) error {
		frame, err := assembler.HandlePacket(payload)
		if err != nil {
			return err
		}
		if frame != nil {
			frames = append(frames, frame)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if assembler.Dropped() > 0 {
		monitoring.Logf("capture replay dropped %d partial frames", assembler.Dropped())
	}
	return frames, nil
}
