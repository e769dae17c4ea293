package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everforgeworks/bridgeflow/internal/traffic"
)

func serve(t *testing.T, h http.HandlerFunc, method string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, "/", nil))
	return rec
}

func TestHandleGetSnapshot(t *testing.T) {
	e := newTestEngine(t, traffic.DefaultConfig())
	_, err := e.Advance(epoch.Add(time.Second))
	require.NoError(t, err)

	rec := serve(t, HandleGetSnapshot(e), http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap traffic.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Tick)
	require.Len(t, snap.Vehicles, 1)
	assert.Equal(t, traffic.MainLane, snap.Vehicles[0].Lane)
	assert.Contains(t, rec.Body.String(), `"lane":"main"`)
}

func TestHandleGetRoad(t *testing.T) {
	e := newTestEngine(t, traffic.DefaultConfig())

	rec := serve(t, HandleGetRoad(e), http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)

	var road RoadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &road))
	assert.Equal(t, 300.0, road.BridgeStart)
	assert.Equal(t, 400.0, road.BridgeEnd)
	assert.Equal(t, 500.0, road.LightPosition)
	assert.Equal(t, 4.5, road.VehicleLength)
	assert.Equal(t, traffic.DefaultConfig().Light, road.Light)
}

func TestHandleGetStats(t *testing.T) {
	e := newTestEngine(t, traffic.DefaultConfig())
	for _, s := range []int{1, 2, 3} {
		_, err := e.Advance(epoch.Add(time.Duration(s) * time.Second))
		require.NoError(t, err)
	}

	rec := serve(t, HandleGetStats(e), http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats traffic.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Ticks)
	assert.Positive(t, stats.Spawned)
}

func TestHandlersRejectWrites(t *testing.T) {
	e := newTestEngine(t, traffic.DefaultConfig())
	for name, h := range map[string]http.HandlerFunc{
		"snapshot": HandleGetSnapshot(e),
		"road":     HandleGetRoad(e),
		"stats":    HandleGetStats(e),
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, h, http.MethodPost)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}
