package tracking

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/social-agent/pkg/logger"
)

func TestRecorder_CapturesCopies(t *testing.T) {
	r := NewRecorder()
	tags := map[string]string{"job_type": "social-post"}

	id := r.Capture(context.Background(), errors.New("boom"), tags)
	tags["job_type"] = "mutated"

	events := r.Events()
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.EqualError(t, events[0].Err, "boom")
	assert.Equal(t, "social-post", events[0].Tags["job_type"])
}

func TestRecorder_IgnoresNil(t *testing.T) {
	r := NewRecorder()
	assert.Empty(t, r.Capture(context.Background(), nil, nil))
	assert.Empty(t, r.Events())
}

func TestLogReporter_WritesTags(t *testing.T) {
	var buf bytes.Buffer
	log := &logger.Logger{Logger: zerolog.New(&buf)}
	r := NewLogReporter(log)

	id := r.Capture(context.Background(), errors.New("decrypt failed"), map[string]string{
		"platform": "twitter",
		"user_id":  "u1",
	})
	require.NotEmpty(t, id)

	out := buf.String()
	assert.Contains(t, out, `"event_id":"`+id+`"`)
	assert.Contains(t, out, `"platform":"twitter"`)
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.Contains(t, out, "decrypt failed")
}

func TestNop(t *testing.T) {
	assert.Empty(t, Nop{}.Capture(context.Background(), errors.New("x"), nil))
}
