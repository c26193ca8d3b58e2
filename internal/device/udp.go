package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// Frames travel over UDP as row-banded packets so a full capture fits
// within ordinary datagram limits. Every packet carries a fixed header:
//
//	offset 0: magic "KVF1"
//	offset 4: frame sequence number (uint16, big endian)
//	offset 6: frame edge length in pixels (uint16)
//	offset 8: first row in this packet (uint16)
//	offset 10: row count in this packet (uint16)
//
// followed by rowCount*size*3 bytes of BGR pixel data. A 256px frame
// splits into four 64-row packets of 49164 bytes each.
const (
	frameMagic     = "KVF1"
	headerSize     = 12
	maxPacketBytes = 65000
	maxRowsPerPkt  = 64
)

// FramePacket is one decoded row band of a frame.
type FramePacket struct {
	Seq      uint16
	Size     int
	RowStart int
	RowCount int
	Payload  []byte
}

// EncodeFramePackets splits a frame into wire packets under the given
// sequence number. The sender increments seq once per frame.
func EncodeFramePackets(f *vision.Frame, seq uint16) ([][]byte, error) {
	rowBytes := f.Size * 3
	if rowBytes <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", f.Size)
	}
	rowsPer := (maxPacketBytes - headerSize) / rowBytes
	if rowsPer > maxRowsPerPkt {
		rowsPer = maxRowsPerPkt
	}
	if rowsPer < 1 {
		return nil, fmt.Errorf("frame rows of %d bytes exceed packet budget", rowBytes)
	}

	var packets [][]byte
	for start := 0; start < f.Size; start += rowsPer {
		count := rowsPer
		if start+count > f.Size {
			count = f.Size - start
		}
		pkt := make([]byte, headerSize+count*rowBytes)
		copy(pkt[0:4], frameMagic)
		binary.BigEndian.PutUint16(pkt[4:6], seq)
		binary.BigEndian.PutUint16(pkt[6:8], uint16(f.Size))
		binary.BigEndian.PutUint16(pkt[8:10], uint16(start))
		binary.BigEndian.PutUint16(pkt[10:12], uint16(count))
		copy(pkt[headerSize:], f.Pix[start*rowBytes:(start+count)*rowBytes])
		packets = append(packets, pkt)
	}
	return packets, nil
}

// ParseFramePacket validates and decodes a single wire packet. The
// returned payload aliases pkt.
func ParseFramePacket(pkt []byte) (FramePacket, error) {
	if len(pkt) < headerSize {
		return FramePacket{}, fmt.Errorf("packet too short: %d bytes", len(pkt))
	}
	if string(pkt[0:4]) != frameMagic {
		return FramePacket{}, fmt.Errorf("bad magic %q", pkt[0:4])
	}
	p := FramePacket{
		Seq:      binary.BigEndian.Uint16(pkt[4:6]),
		Size:     int(binary.BigEndian.Uint16(pkt[6:8])),
		RowStart: int(binary.BigEndian.Uint16(pkt[8:10])),
		RowCount: int(binary.BigEndian.Uint16(pkt[10:12])),
		Payload:  pkt[headerSize:],
	}
	if p.Size <= 0 || p.RowCount <= 0 {
		return FramePacket{}, fmt.Errorf("empty packet geometry size=%d rows=%d", p.Size, p.RowCount)
	}
	if p.RowStart+p.RowCount > p.Size {
		return FramePacket{}, fmt.Errorf("rows %d..%d outside %dpx frame", p.RowStart, p.RowStart+p.RowCount-1, p.Size)
	}
	if want := p.RowCount * p.Size * 3; len(p.Payload) != want {
		return FramePacket{}, fmt.Errorf("payload is %d bytes, want %d", len(p.Payload), want)
	}
	return p, nil
}

// FrameAssembler rebuilds frames from row-band packets. Packets may
// arrive in any order within a frame. A packet bearing a new sequence
// number abandons the partial frame in progress: the stream favors the
// newest frame over completing a stale one.
type FrameAssembler struct {
	size     int
	started  bool
	seq      uint16
	frame    *vision.Frame
	rowsSeen []bool
	rowsLeft int
	doneSeq  uint16
	done     bool
	dropped  int
}

// NewFrameAssembler builds an assembler for frames of the given edge
// length.
func NewFrameAssembler(size int) *FrameAssembler {
	return &FrameAssembler{size: size}
}

// HandlePacket feeds one wire packet in. It returns the completed frame
// when the packet supplies the final missing rows, nil otherwise.
func (a *FrameAssembler) HandlePacket(pkt []byte) (*vision.Frame, error) {
	p, err := ParseFramePacket(pkt)
	if err != nil {
		return nil, err
	}
	if p.Size != a.size {
		return nil, fmt.Errorf("packet frame size %d, assembler expects %d", p.Size, a.size)
	}
	if a.done && p.Seq == a.doneSeq {
		return nil, nil // duplicate of an already delivered frame
	}

	if !a.started || p.Seq != a.seq {
		if a.started && a.rowsLeft > 0 {
			a.dropped++
		}
		a.started = true
		a.seq = p.Seq
		a.frame = vision.NewFrame(a.size)
		a.rowsSeen = make([]bool, a.size)
		a.rowsLeft = a.size
	}

	rowBytes := a.size * 3
	for i := 0; i < p.RowCount; i++ {
		row := p.RowStart + i
		if a.rowsSeen[row] {
			continue
		}
		copy(a.frame.Pix[row*rowBytes:(row+1)*rowBytes], p.Payload[i*rowBytes:(i+1)*rowBytes])
		a.rowsSeen[row] = true
		a.rowsLeft--
	}

	if a.rowsLeft > 0 {
		return nil, nil
	}
	f := a.frame
	a.frame = nil
	a.started = false
	a.done = true
	a.doneSeq = p.Seq
	return f, nil
}

// Dropped returns how many partial frames were abandoned for a newer
// sequence.
func (a *FrameAssembler) Dropped() int {
	return a.dropped
}

// UDPSourceConfig configures a UDPFrameSource.
type UDPSourceConfig struct {
	Address   string // listen address, e.g. ":7440"
	FrameSize int    // expected frame edge length in pixels
	RcvBuf    int    // socket receive buffer, 0 for the 4MB default
}

// UDPFrameSource listens for row-band packets and keeps the newest
// complete frame for the loop to collect. Start runs the socket loop;
// Grab is non-blocking and reports ErrNoFrame until a frame newer than
// the last collected one has fully arrived.
type UDPFrameSource struct {
	address string
	rcvBuf  int
	size    int

	conn *net.UDPConn

	mu        sync.Mutex
	assembler *FrameAssembler
	latest    *vision.Frame
	fresh     bool
	frames    int
	packets   int
	badPkts   int
}

// NewUDPFrameSource creates a source from config. Call Start in its own
// goroutine before the first Grab.
func NewUDPFrameSource(cfg UDPSourceConfig) *UDPFrameSource {
	rcvBuf := cfg.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 4 << 20
	}
	return &UDPFrameSource{
		address:   cfg.Address,
		rcvBuf:    rcvBuf,
		size:      cfg.FrameSize,
		assembler: NewFrameAssembler(cfg.FrameSize),
	}
}

// Start listens for packets until the context is cancelled.
func (s *UDPFrameSource) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	s.conn = conn
	defer conn.Close()

	if err := conn.SetReadBuffer(s.rcvBuf); err != nil {
		monitoring.Logf("warning: failed to set UDP receive buffer to %d: %v", s.rcvBuf, err)
	}

	monitoring.Logf("frame listener started on %s with receive buffer %d bytes", s.address, s.rcvBuf)

	buffer := make([]byte, 65536)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("frame listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Set read deadline to allow checking context cancellation
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, from, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue // Continue on timeout to check context
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("UDP read error: %v", err)
				continue
			}

			if err := s.handlePacket(buffer[:n]); err != nil {
				monitoring.Logf("error handling packet from %v: %v", from, err)
			}
		}
	}
}

func (s *UDPFrameSource) handlePacket(pkt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packets++
	frame, err := s.assembler.HandlePacket(pkt)
	if err != nil {
		s.badPkts++
		return err
	}
	if frame != nil {
		s.latest = frame
		s.fresh = true
		s.frames++
	}
	return nil
}

// Grab implements FrameSource.
func (s *UDPFrameSource) Grab(ctx context.Context) (*vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return nil, ErrNoFrame
	}
	s.fresh = false
	return s.latest, nil
}

// Stats reports packets handled, frames completed, malformed packets,
// and partial frames abandoned for a newer sequence.
func (s *UDPFrameSource) Stats() (packets, frames, bad, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.frames, s.badPkts, s.assembler.Dropped()
}

// Close shuts the socket down, unblocking a pending read in Start.
func (s *UDPFrameSource) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
