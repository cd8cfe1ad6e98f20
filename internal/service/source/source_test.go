package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func drain(t *testing.T, src FrameSource) []Frame {
	t.Helper()
	var frames []Frame
	for {
		frame, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		frames = append(frames, frame)
	}
}

func TestDirectorySource_Order(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "day2", "camA", "001.jpg"), "d2a1")
	writeFile(t, filepath.Join(root, "day1", "camB", "001.png"), "d1b1")
	writeFile(t, filepath.Join(root, "day1", "camA", "002.JPG"), "d1a2")
	writeFile(t, filepath.Join(root, "day1", "camA", "001.jpg"), "d1a1")
	writeFile(t, filepath.Join(root, "day1", "camA", "notes.txt"), "skip")
	writeFile(t, filepath.Join(root, "readme.md"), "skip")

	src, err := NewDirectorySource(root, nil, logger.Discard())
	if err != nil {
		t.Fatalf("NewDirectorySource failed: %v", err)
	}
	if src.Len() != 4 {
		t.Fatalf("Expected 4 frames, got %d", src.Len())
	}

	frames := drain(t, src)
	want := []struct{ camera, data string }{
		{"camA", "d1a1"},
		{"camA", "d1a2"},
		{"camB", "d1b1"},
		{"camA", "d2a1"},
	}
	for i, w := range want {
		if frames[i].Camera != w.camera || string(frames[i].Data) != w.data {
			t.Errorf("Frame %d: expected %s/%s, got %s/%s", i, w.camera, w.data, frames[i].Camera, frames[i].Data)
		}
	}
	if frames[0].Name != "001.jpg" {
		t.Errorf("Expected name 001.jpg, got %s", frames[0].Name)
	}

	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF after exhaustion, got %v", err)
	}
}

func TestDirectorySource_ConfiguredCameras(t *testing.T) {
	root := t.TempDir()
	extra := t.TempDir()
	writeFile(t, filepath.Join(root, "day1", "camA", "001.jpg"), "a")
	writeFile(t, filepath.Join(root, "day1", "camB", "001.jpg"), "b")
	writeFile(t, filepath.Join(extra, "x.jpg"), "gate")

	cameras := []config.Camera{
		{ID: "camA"},
		{ID: "gate", SourceDir: extra},
	}
	src, err := NewDirectorySource(root, cameras, logger.Discard())
	if err != nil {
		t.Fatalf("NewDirectorySource failed: %v", err)
	}

	frames := drain(t, src)
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if frames[0].Camera != "camA" || frames[1].Camera != "gate" {
		t.Errorf("Unexpected cameras: %s, %s", frames[0].Camera, frames[1].Camera)
	}
}

func TestDirectorySource_MissingRoot(t *testing.T) {
	if _, err := NewDirectorySource(filepath.Join(t.TempDir(), "missing"), nil, logger.Discard()); err == nil {
		t.Error("Expected error for missing source directory")
	}
}

func TestDirectorySource_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "day1", "camA", "001.jpg"), "a")

	src, err := NewDirectorySource(root, nil, logger.Discard())
	if err != nil {
		t.Fatalf("NewDirectorySource failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestUDPSource_Reassembly(t *testing.T) {
	src, err := NewUDPSource(0, map[string]string{"127.0.0.1": "cam1"}, logger.Discard())
	if err != nil {
		t.Fatalf("NewUDPSource failed: %v", err)
	}
	defer src.Close()

	port := src.Addr().(*net.UDPAddr).Port
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	start := []byte{0xFF, 0xD8, 0x01, 0x02}
	end := []byte{0x03, 0xFF, 0xD9}
	conn.Write(start)
	time.Sleep(10 * time.Millisecond)
	conn.Write(end)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frame, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Camera != "cam1" {
		t.Errorf("Expected camera cam1, got %s", frame.Camera)
	}
	if !bytes.Equal(frame.Data, append(start, end...)) {
		t.Errorf("Unexpected frame data: %x", frame.Data)
	}
}

func TestUDPSource_CloseEndsStream(t *testing.T) {
	src, err := NewUDPSource(0, nil, logger.Discard())
	if err != nil {
		t.Fatalf("NewUDPSource failed: %v", err)
	}
	src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF after Close, got %v", err)
	}
}
