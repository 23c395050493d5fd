package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipe returns the reading end of an in-memory connection and hands the
// writing end to write, which runs in its own goroutine.
func pipe(t *testing.T, write func(w net.Conn)) net.Conn {
	t.Helper()
	r, w := net.Pipe()
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	go write(w)
	return r
}

func TestIdleReader(t *testing.T) {
	large := bytes.Repeat([]byte("x"), 3*ChunkSize+123)

	cases := []struct {
		name  string
		write func(w net.Conn)
		want  []byte
	}{
		{
			name:  "single message then idle",
			write: func(w net.Conn) { _, _ = w.Write([]byte("PING")) },
			want:  []byte("PING"),
		},
		{
			name:  "message spanning several chunks",
			write: func(w net.Conn) { _, _ = w.Write(large) },
			want:  large,
		},
		{
			name: "eof ends the frame",
			write: func(w net.Conn) {
				_, _ = w.Write([]byte("abc"))
				_ = w.Close()
			},
			want: []byte("abc"),
		},
		{
			name:  "immediate close is an empty frame",
			write: func(w net.Conn) { _ = w.Close() },
			want:  nil,
		},
		{
			name: "pause longer than the idle window truncates",
			write: func(w net.Conn) {
				_, _ = w.Write([]byte("part1"))
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write([]byte("part2"))
			},
			want: []byte("part1"),
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			conn := pipe(t, tt.write)
			r := NewIdleReader(20*time.Millisecond, 0)

			got, err := r.ReadFrame(conn, time.Second)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), len(got))
			assert.True(t, bytes.Equal(tt.want, got))
		})
	}
}

func TestIdleReader_TimeoutIsNotAnError(t *testing.T) {
	conn := pipe(t, func(w net.Conn) {})
	r := NewIdleReader(10*time.Millisecond, 0)

	start := time.Now()
	got, err := r.ReadFrame(conn, 100*time.Millisecond)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestIdleReader_TooLarge(t *testing.T) {
	conn := pipe(t, func(w net.Conn) { _, _ = w.Write(make([]byte, 20)) })
	r := NewIdleReader(10*time.Millisecond, 10)

	_, err := r.ReadFrame(conn, time.Second)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestIdleReader_ClosedConnIsAnError(t *testing.T) {
	r, w := net.Pipe()
	defer w.Close()
	require.NoError(t, r.Close())

	_, err := NewIdleReader(0, 0).ReadFrame(r, time.Second)
	assert.Error(t, err)
}

func lengthFrame(payload string) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

func TestLengthPrefixedReader(t *testing.T) {
	t.Run("complete frame keeps header", func(t *testing.T) {
		want := lengthFrame("hello")
		conn := pipe(t, func(w net.Conn) {
			_, _ = w.Write(want[:2])
			_, _ = w.Write(want[2:])
		})

		got, err := (&LengthPrefixedReader{}).ReadFrame(conn, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("nothing sent", func(t *testing.T) {
		conn := pipe(t, func(w net.Conn) { _ = w.Close() })

		got, err := (&LengthPrefixedReader{}).ReadFrame(conn, time.Second)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("stream ends mid payload", func(t *testing.T) {
		conn := pipe(t, func(w net.Conn) {
			_, _ = w.Write(lengthFrame("hello")[:6])
			_ = w.Close()
		})

		_, err := (&LengthPrefixedReader{}).ReadFrame(conn, time.Second)
		assert.ErrorIs(t, err, ErrIncompleteFrame)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("declared size over limit", func(t *testing.T) {
		conn := pipe(t, func(w net.Conn) { _, _ = w.Write(lengthFrame("0123456789")) })

		_, err := (&LengthPrefixedReader{MaxSize: 8}).ReadFrame(conn, time.Second)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
}

func TestDelimiterReader(t *testing.T) {
	t.Run("delimiter in one read", func(t *testing.T) {
		req := "GET / HTTP/1.1\r\nHost: upstream\r\n\r\n"
		conn := pipe(t, func(w net.Conn) { _, _ = w.Write([]byte(req)) })

		got, err := NewDelimiterReader("\r\n\r\n", 0).ReadFrame(conn, time.Second)
		require.NoError(t, err)
		assert.Equal(t, req, string(got))
	})

	t.Run("delimiter straddles reads", func(t *testing.T) {
		conn := pipe(t, func(w net.Conn) {
			_, _ = w.Write([]byte("abc\r\n"))
			_, _ = w.Write([]byte("\r\nrest"))
		})

		got, err := NewDelimiterReader("\r\n\r\n", 0).ReadFrame(conn, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "abc\r\n\r\nrest", string(got))
	})

	t.Run("nothing sent", func(t *testing.T) {
		conn := pipe(t, func(w net.Conn) { _ = w.Close() })

		got, err := NewDelimiterReader("\n", 0).ReadFrame(conn, time.Second)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("stream ends before delimiter", func(t *testing.T) {
		conn := pipe(t, func(w net.Conn) {
			_, _ = w.Write([]byte("no newline"))
			_ = w.Close()
		})

		_, err := NewDelimiterReader("\n", 0).ReadFrame(conn, time.Second)
		assert.ErrorIs(t, err, ErrIncompleteFrame)
	})

	t.Run("empty delimiter", func(t *testing.T) {
		conn := pipe(t, func(w net.Conn) {})

		_, err := NewDelimiterReader("", 0).ReadFrame(conn, time.Second)
		assert.Error(t, err)
	})
}
