package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFormatSSE(t *testing.T) {
	event := Event{
		Type: "item-success",
		Data: map[string]interface{}{"message": "hello", "count": 42},
	}
	lines := strings.Split(event.FormatSSE(), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "event: item-success", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "data: "))
	assert.Equal(t, "", lines[2])

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &data))
	assert.Equal(t, "hello", data["message"])
	assert.Equal(t, float64(42), data["count"])

	// id 行
	event.ID = 3
	assert.True(t, strings.HasPrefix(event.FormatSSE(), "id: 3\nevent: item-success\n"))

	// 无法序列化的数据
	bad := Event{Type: "x", Data: make(chan int)}
	assert.Contains(t, bad.FormatSSE(), `"error"`)
}

func TestHub(t *testing.T) {
	hub := NewHub()
	a := &Client{ID: "a", Resource: "r"}
	b := &Client{ID: "b", Resource: "r"}

	assert.True(t, hub.TryRegister(a, 1))
	assert.False(t, hub.TryRegister(b, 1))
	assert.Equal(t, 1, hub.ClientCount("r"))

	hub.Register(b)
	assert.Equal(t, 2, hub.ClientCount("r"))

	hub.Unregister(a)
	hub.Unregister(b)
	hub.Unregister(b)
	assert.Zero(t, hub.ClientCount("r"))
	assert.True(t, hub.TryRegister(a, 0))
}

type sseEvent struct {
	Type string
	Data string
}

func parseEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.Type != "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	require.NoError(t, sc.Err())
	return events
}

func newGinContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/batch", nil)
	return c, w
}

func TestBatchRunner(t *testing.T) {
	c, w := newGinContext()
	hub := NewHub()
	stream := NewStream(c, hub).WithResource("batch").WithBufferSize(2).WithHeartbeat(0).Build()
	require.NoError(t, stream.Open(1))
	assert.Equal(t, 1, hub.ClientCount("batch"))

	// 第二个流超出上限
	c2, w2 := newGinContext()
	other := NewStream(c2, hub).WithResource("batch").Build()
	assert.ErrorIs(t, other.Open(1), ErrTooManyStreams)
	assert.Zero(t, w2.Body.Len())

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	items := []string{"acme", "globex", "initech"}
	runner := NewBatchRunner(stream, items).
		WithEventPrefix("company").
		WithWorkerPool(pool).
		WithItemNamer(func(s string) string { return strings.ToUpper(s) }).
		Process(func(_ context.Context, item string) (interface{}, error) {
			if item == "globex" {
				return nil, errors.New("boom")
			}
			return map[string]string{"term": item}, nil
		})

	statsCh := make(chan BatchStats, 1)
	go func() {
		defer stream.Finish()
		stats, err := runner.Run(context.Background())
		assert.NoError(t, err)
		statsCh <- stats
	}()
	require.NoError(t, stream.Serve())

	stats := <-statsCh
	assert.Equal(t, BatchStats{Total: 3, Success: 2, Failed: 1}, stats)
	assert.Zero(t, hub.ClientCount("batch"))
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseEvents(t, w.Body.String())
	require.Len(t, events, 6)
	assert.Equal(t, "connected", events[0].Type)
	assert.Equal(t, "batch-start", events[1].Type)
	assert.Equal(t, "batch-complete", events[5].Type)

	var success, failed int
	for _, ev := range events[2:5] {
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &payload))
		switch ev.Type {
		case "company-success":
			success++
			assert.NotNil(t, payload["data"])
		case "company-failed":
			failed++
			assert.Equal(t, "GLOBEX", payload["item_name"])
			assert.Equal(t, "boom", payload["error"])
			assert.Equal(t, float64(2), payload["index"])
		default:
			t.Fatalf("unexpected event %q", ev.Type)
		}
	}
	assert.Equal(t, 2, success)
	assert.Equal(t, 1, failed)

	var complete BatchStats
	require.NoError(t, json.Unmarshal([]byte(events[5].Data), &complete))
	assert.Equal(t, stats, complete)

	assert.ErrorIs(t, stream.Send("late", nil), ErrStreamClosed)
}

func TestBatchRunner_Misconfigured(t *testing.T) {
	c, _ := newGinContext()
	stream := NewStream(c, NewHub()).Build()

	_, err := NewBatchRunner(stream, []int{1}).Run(context.Background())
	assert.Error(t, err)

	_, err = NewBatchRunner(stream, []int{1}).
		Process(func(context.Context, int) (interface{}, error) { return nil, nil }).
		Run(context.Background())
	assert.Error(t, err)

	assert.ErrorIs(t, stream.Serve(), ErrStreamNotOpened)
}

func TestStream_ClientGone(t *testing.T) {
	c, _ := newGinContext()
	ctx, cancel := context.WithCancel(context.Background())
	c.Request = c.Request.WithContext(ctx)

	hub := NewHub()
	stream := NewStream(c, hub).WithResource("r").WithBufferSize(1).Build()
	require.NoError(t, stream.Open(0))
	require.NoError(t, stream.Send("first", 1))

	cancel()
	require.NoError(t, stream.Serve())
	assert.ErrorIs(t, stream.Send("second", 2), ErrStreamClosed)
	assert.Zero(t, hub.ClientCount("r"))
}
