package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"parkingserver/internal/logger"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// UDPSource reassembles JPEG frames that cameras stream as UDP packets.
// A packet starting with the JPEG header begins a new frame for its sender;
// a packet ending with the footer completes it.
type UDPSource struct {
	conn        *net.UDPConn
	cameraNames map[string]string
	frames      chan Frame
	logger      *logger.Logger
}

// NewUDPSource listens on port. cameraNames maps sender IPs to camera ids;
// unknown senders are named unknown_<ip>.
func NewUDPSource(port int, cameraNames map[string]string, logger *logger.Logger) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %d: %w", port, err)
	}

	s := &UDPSource{
		conn:        conn,
		cameraNames: cameraNames,
		frames:      make(chan Frame, 100),
		logger:      logger,
	}
	go s.readLoop()

	logger.Info("UDP camera source started on %s", conn.LocalAddr())
	return s, nil
}

// Addr returns the local listening address.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close stops listening. Pending frames are still returned by Next before io.EOF.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}

// Next blocks until a complete frame arrives, ctx is done or the source is closed.
func (s *UDPSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			return Frame{}, io.EOF
		}
		return frame, nil
	}
}

func (s *UDPSource) readLoop() {
	defer close(s.frames)

	buffer := make([]byte, 65535)
	cameraBuffers := make(map[string]*bytes.Buffer)

	for {
		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("UDP camera source stopped")
				return
			}
			s.logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		ip := remoteAddr.IP.String()
		cameraName, exists := s.cameraNames[ip]
		if !exists {
			cameraName = "unknown_" + ip
		}

		data := buffer[:n]
		imgBuffer, ok := cameraBuffers[cameraName]
		if !ok {
			imgBuffer = new(bytes.Buffer)
			cameraBuffers[cameraName] = imgBuffer
		}

		if bytes.HasPrefix(data, jpegHeader) {
			imgBuffer.Reset()
		}
		imgBuffer.Write(data)

		if bytes.HasSuffix(data, jpegFooter) {
			fullFrame := make([]byte, imgBuffer.Len())
			copy(fullFrame, imgBuffer.Bytes())
			imgBuffer.Reset()

			frame := Frame{Camera: cameraName, Data: fullFrame, CapturedAt: time.Now()}
			select {
			case s.frames <- frame:
			default:
				s.logger.Warning("Frame queue full for camera %s - dropping frame", cameraName)
			}
		}
	}
}
