package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const testMaxWalk = 6

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	reg, err := NewRegistry(10, 8)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(reg, testMaxWalk))
	t.Cleanup(srv.Close)
	return srv, reg
}

// call performs a request and decodes a JSON response into out, if given.
func call(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(out), string(data))
	}
	return resp.StatusCode
}

func TestRingLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	var view RingView
	status := call(t, srv, http.MethodPut, "/rings/seq", `{"values":[0,1,2,3,4,5,6,7]}`, &view)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 8, view.Size)
	assert.False(t, view.Joint)

	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPut, "/rings/seq", `{"values":[]}`, nil))

	status = call(t, srv, http.MethodPut, "/rings/j", `{"values":["a","b","c"],"joint":true}`, &view)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, RingView{Name: "j", Size: 2, Joint: true, Values: []any{"a", "b", "a"}}, view)

	var names []string
	call(t, srv, http.MethodGet, "/rings", "", &names)
	assert.Equal(t, []string{"j", "seq"}, names)

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodDelete, "/rings/seq", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/rings/seq", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodDelete, "/rings/seq", "", nil))
}

func TestPositionalAccess(t *testing.T) {
	srv, _ := newTestServer(t)
	call(t, srv, http.MethodPut, "/rings/j", `{"values":[0,1,2,3,4,5,6,7],"joint":true}`, nil)

	var view RingView
	call(t, srv, http.MethodGet, "/rings/j", "", &view)
	assert.Equal(t, 7, view.Size)
	assert.Equal(t, []any{0.0, 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 0.0}, view.Values)

	var step Step
	call(t, srv, http.MethodGet, "/rings/j/at/-1", "", &step)
	assert.Equal(t, Step{Index: 6, Value: 6.0}, step)

	assert.Equal(t, http.StatusNoContent, call(t, srv, http.MethodPut, "/rings/j/at/7", `"zero"`, nil))
	call(t, srv, http.MethodGet, "/rings/j", "", &view)
	assert.Equal(t, "zero", view.Values[0])
	assert.Equal(t, "zero", view.Values[7])

	var idx map[string]int
	call(t, srv, http.MethodGet, "/rings/j/index/6", "", &idx)
	assert.Equal(t, map[string]int{"index": 6, "next": 0, "prev": 5}, idx)

	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/rings/j/at/x", "", nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPut, "/rings/j/at/1", `{`, nil))
}

func TestGrowAndShrink(t *testing.T) {
	srv, _ := newTestServer(t)
	call(t, srv, http.MethodPut, "/rings/s", `{"values":[0,1,2,3,4,5,6,7]}`, nil)

	var size map[string]int
	call(t, srv, http.MethodPost, "/rings/s/append", `9`, &size)
	assert.Equal(t, 9, size["size"])

	var step Step
	call(t, srv, http.MethodGet, "/rings/s/at/8", "", &step)
	assert.Equal(t, 9.0, step.Value)

	var popped map[string]any
	call(t, srv, http.MethodPost, "/rings/s/pop", "", &popped)
	assert.Equal(t, map[string]any{"value": 9.0, "size": 8.0}, popped)

	call(t, srv, http.MethodPost, "/rings/s/unshift", `"head"`, &size)
	assert.Equal(t, 9, size["size"])

	call(t, srv, http.MethodPost, "/rings/s/shift", "", &popped)
	assert.Equal(t, "head", popped["value"])

	call(t, srv, http.MethodPost, "/rings/s/at/11", `11`, &size)
	assert.Equal(t, 9, size["size"])
	call(t, srv, http.MethodGet, "/rings/s/at/3", "", &step)
	assert.Equal(t, 11.0, step.Value)

	call(t, srv, http.MethodDelete, "/rings/s/at/3", "", &popped)
	assert.Equal(t, 11.0, popped["value"])

	call(t, srv, http.MethodPut, "/rings/empty", `{}`, nil)
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/rings/empty/pop", "", nil))
	assert.Equal(t, http.StatusConflict, call(t, srv, http.MethodGet, "/rings/empty/at/0", "", nil))
	call(t, srv, http.MethodPost, "/rings/empty/prepend", `1`, &size)
	assert.Equal(t, 1, size["size"])
}

func TestWalk(t *testing.T) {
	srv, _ := newTestServer(t)
	call(t, srv, http.MethodPut, "/rings/w", `{"values":["a","b","c","d"]}`, nil)

	tests := []struct {
		query string
		want  []Step
	}{
		{"from=1&to=2", []Step{{1, "b"}, {2, "c"}}},
		{"from=3&to=3", []Step{{3, "d"}, {0, "a"}, {1, "b"}, {2, "c"}}},
		{"dir=backward&from=0&to=-2", []Step{{0, "a"}, {3, "d"}, {2, "c"}}},
		{"from=2&count=3", []Step{{2, "c"}, {3, "d"}, {0, "a"}}},
		{"dir=backward&from=2&count=0", []Step{}},
		{"from=3&count=6", []Step{{3, "d"}, {0, "a"}, {1, "b"}, {2, "c"}, {3, "d"}, {0, "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []Step
			require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/rings/w/walk?"+tt.query, "", &got))
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{
		"to=1",
		"from=1",
		"from=1&to=2&count=3",
		"from=a&to=1",
		"dir=up&from=1&to=2",
		"from=0&count=7",
		"dir=backward&from=0&count=9223372036854775807",
	} {
		assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/rings/w/walk?"+bad, "", nil), bad)
	}

	// A full lap of a ring larger than the limit is refused too.
	call(t, srv, http.MethodPut, "/rings/big", `{"values":[0,1,2,3,4,5,6,7]}`, nil)
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/rings/big/walk?from=0&to=0", "", nil))
	var got []Step
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/rings/big/walk?from=6&to=1", "", &got))
	assert.Len(t, got, 4)
}

func TestQueries(t *testing.T) {
	srv, reg := newTestServer(t)
	call(t, srv, http.MethodPut, "/rings/q", `{"values":[0,1,2,3,4,5,6,7]}`, nil)
	require.NoError(t, reg.Create("typed", []any{int64(5), "x"}, false))

	var d map[string]int
	call(t, srv, http.MethodGet, "/rings/q/distance?dir=backward&from=2&to=7", "", &d)
	assert.Equal(t, 4, d["distance"])
	call(t, srv, http.MethodGet, "/rings/q/distance?from=7&to=3", "", &d)
	assert.Equal(t, 5, d["distance"])
	assert.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodGet, "/rings/q/distance?from=7", "", nil))

	var n map[string]bool
	call(t, srv, http.MethodGet, "/rings/q/neighbours?a=7&b=0", "", &n)
	assert.True(t, n["neighbours"])
	call(t, srv, http.MethodGet, "/rings/q/neighbours?a=3&b=0", "", &n)
	assert.False(t, n["neighbours"])

	var found map[string]any
	call(t, srv, http.MethodGet, "/rings/typed/locate?value=5&strict=true", "", &found)
	assert.Equal(t, map[string]any{"index": -1.0, "found": false}, found)
	call(t, srv, http.MethodGet, "/rings/typed/locate?value=5", "", &found)
	assert.Equal(t, map[string]any{"index": 0.0, "found": true}, found)
	call(t, srv, http.MethodGet, "/rings/typed/locate?value=x&strict=true", "", &found)
	assert.Equal(t, map[string]any{"index": 1.0, "found": true}, found)
}

func TestEventsHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	call(t, srv, http.MethodPut, "/rings/e", `{"values":[1]}`, nil)
	call(t, srv, http.MethodPost, "/rings/e/append", `2`, nil)
	call(t, srv, http.MethodPost, "/rings/e/pop", "", nil)
	call(t, srv, http.MethodPost, "/rings/e/pop", "", nil)
	// Fails on an empty ring and records nothing.
	call(t, srv, http.MethodPost, "/rings/e/pop", "", nil)

	var events []Event
	call(t, srv, http.MethodGet, "/events", "", &events)
	require.Len(t, events, 4)

	ops := make([]string, len(events))
	for i, e := range events {
		ops[i] = e.Op
		assert.Equal(t, "e", e.Ring)
	}
	assert.Equal(t, []string{"create", "append", "pop", "pop"}, ops)
	assert.Equal(t, 0, events[3].Size)
}

func TestWebsocketStreamsEvents(t *testing.T) {
	srv, reg := newTestServer(t)
	require.NoError(t, reg.Create("live", []any{"a"}, false))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return reg.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	call(t, srv, http.MethodPut, "/rings/live/at/0", `"b"`, nil)

	var e Event
	require.NoError(t, wsjson.Read(ctx, c, &e))
	assert.Equal(t, "live", e.Ring)
	assert.Equal(t, "set", e.Op)
	require.NotNil(t, e.Pos)
	assert.Equal(t, 0, *e.Pos)
	assert.Equal(t, 1, e.Size)
}

func TestStartServerShutsDown(t *testing.T) {
	reg, err := NewRegistry(1, 0)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Port = "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, config, reg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
