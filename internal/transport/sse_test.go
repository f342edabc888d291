package transport

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSSEStream_WritesHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := newSSEStream(rec)
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, 200, rec.Code)

	require.NoError(t, stream.writeEvent(1, []byte(`{"a":1}`)))
	require.NoError(t, stream.writeComment("keepalive"))
	assert.Contains(t, rec.Body.String(), "id: 1\ndata: {\"a\":1}\n\n")
	assert.Contains(t, rec.Body.String(), ": keepalive\n\n")
}

func TestSSEStream_CloseIsIdempotentAndBlocksWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := newSSEStream(rec)
	require.NoError(t, err)

	stream.close()
	stream.close()

	select {
	case <-stream.Done():
	default:
		t.Fatal("expected Done() to be closed")
	}

	assert.Error(t, stream.writeEvent(1, []byte("x")))
	assert.Error(t, stream.writeComment("x"))
}
