package service

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	apperrors "github.com/lk2023060901/linkedin-discovery/internal/pkg/errors"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/sse"
)

type streamEvent struct {
	Type string
	Data map[string]json.RawMessage
}

func (f *fixture) batch(t *testing.T, req BatchSearchRequest) (*httptest.ResponseRecorder, []streamEvent) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/discovery/batch", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	var (
		events []streamEvent
		cur    streamEvent
	)
	sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.Data))
		case line == "" && cur.Type != "":
			events = append(events, cur)
			cur = streamEvent{}
		}
	}
	return w, events
}

func TestBatchSearch(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.results = microsoftResults()

	w, events := f.batch(t, BatchSearchRequest{
		CompanyNames: []string{"Microsoft", "A", " Contoso  Ltd "},
		Priority:     "high",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	require.Len(t, events, 6)
	assert.Equal(t, "connected", events[0].Type)
	assert.Equal(t, "batch-start", events[1].Type)
	assert.JSONEq(t, "3", string(events[1].Data["total_count"]))

	names := map[string]string{}
	for _, ev := range events[2:5] {
		var name string
		require.NoError(t, json.Unmarshal(ev.Data["item_name"], &name))
		names[name] = ev.Type

		if ev.Type == "company-success" {
			var resp SearchResponse
			require.NoError(t, json.Unmarshal(ev.Data["data"], &resp))
			assert.Equal(t, name, resp.SearchTerm)
			assert.Equal(t, 2, resp.ResultCount)
			assert.NotNil(t, resp.AutoSelected)
		}
	}
	assert.Equal(t, map[string]string{
		"Microsoft":   "company-success",
		"A":           "company-failed",
		"Contoso Ltd": "company-success",
	}, names)

	complete := events[5]
	assert.Equal(t, "batch-complete", complete.Type)
	assert.JSONEq(t, "2", string(complete.Data["success_count"]))
	assert.JSONEq(t, "1", string(complete.Data["failed_count"]))

	// 短名称在进入队列前就被拒绝
	assert.Equal(t, []types.Priority{types.PriorityHigh, types.PriorityHigh}, f.dispatcher.submitted)
	assert.Zero(t, f.svc.hub.ClientCount(batchResource))
}

func TestBatchSearch_ManualEntry(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = types.NewDiscoveryError("Acme", types.ErrQuotaExhausted, nil)

	_, events := f.batch(t, BatchSearchRequest{CompanyNames: []string{"Acme"}})
	require.Len(t, events, 4)
	require.Equal(t, "company-success", events[2].Type)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(events[2].Data["data"], &resp))
	assert.True(t, resp.ManualEntry)
	assert.Equal(t, "quota_exhausted", resp.Reason)
	assert.Equal(t, []types.Priority{types.PriorityNormal}, f.dispatcher.submitted)
}

func TestBatchSearch_Rejected(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		f := newFixture(t)
		w, env := f.do(t, http.MethodPost, "/api/v1/discovery/batch", BatchSearchRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ErrInvalidParams, env.Code)
	})

	t.Run("too many streams", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < DefaultBatchConfig().MaxStreams; i++ {
			f.svc.hub.Register(&sse.Client{Resource: batchResource})
		}

		w, env := f.do(t, http.MethodPost, "/api/v1/discovery/batch", BatchSearchRequest{CompanyNames: []string{"Acme"}})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, apperrors.ErrDiscoveryBusy, env.Code)
		assert.Empty(t, f.dispatcher.submitted)
	})
}

func TestBatchConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultBatchConfig().Validate())
	assert.Error(t, BatchConfig{}.Validate())
	assert.Error(t, BatchConfig{Concurrency: 1, MaxStreams: -1}.Validate())
	assert.Error(t, BatchConfig{Concurrency: 1, Heartbeat: -1}.Validate())
}
