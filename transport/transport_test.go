package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func readN(t *testing.T, s Stream, n int, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	out := make([]byte, 0, n)
	for len(out) < n {
		b, err := s.ReadByte()
		switch {
		case err == nil:
			out = append(out, b)
		case errors.Is(err, ErrNoData):
			if time.Now().After(deadline) {
				t.Fatalf("read %d of %d bytes before timeout", len(out), n)
			}
			time.Sleep(time.Millisecond)
		default:
			t.Fatalf("ReadByte: %v", err)
		}
	}
	return out
}

// 测试内存管道双向读写
func TestPipe(t *testing.T) {
	a, b := Pipe()
	if _, err := b.ReadByte(); !errors.Is(err, ErrNoData) {
		t.Fatalf("empty pipe: expected ErrNoData, got %v", err)
	}

	a.Write([]byte{1, 2, 3})
	b.Write([]byte{9})
	if got := readN(t, b, 3, time.Second); string(got) != string([]byte{1, 2, 3}) {
		t.Fatalf("b read % x", got)
	}
	if got := readN(t, a, 1, time.Second); got[0] != 9 {
		t.Fatalf("a read % x", got)
	}
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe()
	a.Write([]byte{7})
	a.Close()

	if a.Good() {
		t.Fatal("closed end still good")
	}
	if _, err := a.Write([]byte{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("write after close: %v", err)
	}
	// pending bytes are still delivered, then EOF
	if c, err := b.ReadByte(); err != nil || c != 7 {
		t.Fatalf("ReadByte = %d, %v", c, err)
	}
	if _, err := b.ReadByte(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if b.Good() {
		t.Fatal("reader still good after EOF")
	}
}

// 测试 TCP 连接上的轮询读取与超时
func TestConnStream(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := NewConnStream(conn, 2*time.Millisecond)
	server := NewConnStream(<-accepted, 2*time.Millisecond)
	defer client.Close()
	defer server.Close()

	if _, err := server.ReadByte(); !errors.Is(err, ErrNoData) {
		t.Fatalf("idle read: expected ErrNoData, got %v", err)
	}
	if !server.Good() {
		t.Fatal("timeout must not break the stream")
	}

	if _, err := client.Write([]byte{0x55, 0xAA}); err != nil {
		t.Fatal(err)
	}
	if err := client.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := readN(t, server, 2, time.Second); got[0] != 0x55 || got[1] != 0xAA {
		t.Fatalf("read % x", got)
	}

	client.Close()
	deadline := time.Now().Add(time.Second)
	for server.Good() && time.Now().Before(deadline) {
		server.ReadByte()
	}
	if server.Good() {
		t.Fatal("server stream still good after peer close")
	}
}
