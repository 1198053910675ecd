package sse

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// textDecoder decodes payloads of the form {"text":"..."}.
type textDecoder struct{}

func (textDecoder) DecodeDelta(payload []byte) (string, bool) {
	var event struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", false
	}
	if event.Text == "" {
		return "", false
	}
	return event.Text, true
}

func (textDecoder) DecodeTail(payload []byte) (string, bool) {
	var event struct {
		Blocked string `json:"blocked"`
	}
	if err := json.Unmarshal(payload, &event); err != nil || event.Blocked == "" {
		return "", false
	}
	return "[blocked: " + event.Blocked + "]", true
}

// chunkReader yields its chunks one Read call at a time.
type chunkReader struct {
	chunks []string
	index  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.index])
	r.chunks[r.index] = r.chunks[r.index][n:]
	if r.chunks[r.index] == "" {
		r.index++
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

func recvAll(t *testing.T, stream *Stream) []string {
	t.Helper()
	var deltas []string
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			return deltas
		}
		require.NoError(t, err)
		deltas = append(deltas, delta)
	}
}

func TestStreamDecodesChunkedDeltas(t *testing.T) {
	t.Parallel()
	reader := &chunkReader{chunks: []string{
		"data: {\"te",
		"xt\":\"He\"}\n",
		"data: {\"text\":\"llo\"}\n",
	}}
	stream := New(reader, textDecoder{})
	require.Equal(t, []string{"He", "llo"}, recvAll(t, stream))
	require.Equal(t, 2, stream.Count())
}

func TestStreamChunkBoundariesDoNotChangeOutput(t *testing.T) {
	t.Parallel()
	// Includes multi-byte characters that chunk splits may cut apart.
	wire := "data: {\"text\":\"héllo \"}\n" +
		"\n" +
		": comment line\n" +
		"data: {\"text\":\"wörld 世界\"}\n" +
		"data: {\"text\":\"!\"}\n"
	whole := recvAll(t, New(io.NopCloser(strings.NewReader(wire)), textDecoder{}))
	require.Equal(t, []string{"héllo ", "wörld 世界", "!"}, whole)

	for size := 1; size < len(wire); size++ {
		var chunks []string
		for start := 0; start < len(wire); start += size {
			end := start + size
			if end > len(wire) {
				end = len(wire)
			}
			chunks = append(chunks, wire[start:end])
		}
		split := recvAll(t, New(&chunkReader{chunks: chunks}, textDecoder{}))
		require.Equalf(t, whole, split, "chunk size %d", size)
	}
}

func TestStreamIgnoresMalformedAndForeignLines(t *testing.T) {
	t.Parallel()
	wire := "data: {not json}\n" +
		"event: ping\n" +
		"data: {\"other\":true}\n" +
		"data: {\"text\":\"ok\"}\n"
	stream := New(io.NopCloser(strings.NewReader(wire)), textDecoder{})
	require.Equal(t, []string{"ok"}, recvAll(t, stream))
}

func TestStreamDoneEndsCurrentBatchOnly(t *testing.T) {
	t.Parallel()
	// [DONE] discards the rest of its own line batch, but lines arriving in
	// later chunks are still decoded.
	reader := &chunkReader{chunks: []string{
		"data: {\"text\":\"a\"}\ndata: [DONE]\ndata: {\"text\":\"dropped\"}\n",
		"data: {\"text\":\"b\"}\n",
	}}
	stream := New(reader, textDecoder{})
	require.Equal(t, []string{"a", "b"}, recvAll(t, stream))
}

func TestStreamDoneKeepsPartialFragmentForNextChunk(t *testing.T) {
	t.Parallel()
	reader := &chunkReader{chunks: []string{
		"data: [DONE]\ndata: {\"te",
		"xt\":\"c\"}\n",
	}}
	stream := New(reader, textDecoder{})
	require.Equal(t, []string{"c"}, recvAll(t, stream))
}

func TestStreamCarriageReturnsTrimmed(t *testing.T) {
	t.Parallel()
	wire := "data: {\"text\":\"crlf\"}\r\n"
	stream := New(io.NopCloser(strings.NewReader(wire)), textDecoder{})
	require.Equal(t, []string{"crlf"}, recvAll(t, stream))
}

func TestStreamTailAnnotation(t *testing.T) {
	t.Parallel()
	// The final unterminated fragment is handed to DecodeTail at stream end.
	wire := "data: {\"text\":\"partial\"}\n" +
		"data: {\"blocked\":\"SAFETY\"}"
	stream := New(io.NopCloser(strings.NewReader(wire)), textDecoder{})
	require.Equal(t, []string{"partial", "[blocked: SAFETY]"}, recvAll(t, stream))
}

func TestStreamEmpty(t *testing.T) {
	t.Parallel()
	stream := New(io.NopCloser(strings.NewReader("")), textDecoder{})
	require.Empty(t, recvAll(t, stream))
	require.Equal(t, 0, stream.Count())
}

// blockingReader blocks Read until Close, the shape of a hung network read.
type blockingReader struct {
	unblock chan struct{}
	once    sync.Once
}

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.unblock
	return 0, errors.New("reader closed")
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.unblock) })
	return nil
}

func TestStreamCloseUnblocksPendingRecv(t *testing.T) {
	t.Parallel()
	reader := &blockingReader{unblock: make(chan struct{})}
	stream := New(reader, textDecoder{})

	received := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		received <- err
	}()

	stream.Close()

	select {
	case err := <-received:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}
	require.Equal(t, 0, stream.Count())

	// A second Close is a no-op.
	stream.Close()
}
