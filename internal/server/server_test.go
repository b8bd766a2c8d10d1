package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

const (
	lineCharge = "<2024-01-01 00:00:01>Hero|r attacked Boss|r using |cffffffffCharge|r and caused |cffffffff-500|r |cffffffffHealth|r!"
	lineHeal   = "<2024-01-01 00:00:02>Cleric|r targeted Hero|r using |cffffffffMend|r to restore |cffffffff300|r health."
)

func newTestServer(t *testing.T, opts ...combatlog.Option) (*combatlog.Engine, *httptest.Server) {
	t.Helper()
	eng, err := combatlog.NewEngine(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	ts := httptest.NewServer(New(eng, nil).Handler())
	t.Cleanup(ts.Close)
	return eng, ts
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSnapshotEndpoints(t *testing.T) {
	eng, ts := newTestServer(t)
	eng.ApplyLine(lineCharge)
	eng.ApplyLine(lineHeal)

	var snap combatlog.Snapshot
	getJSON(t, ts.URL+"/api/snapshot", &snap)
	assert.Equal(t, map[string]uint64{"Hero": 500}, snap.Damage)
	assert.Equal(t, map[string]uint64{"Cleric": 300}, snap.Heals)
	assert.Nil(t, snap.Incoming)

	var damage map[string]uint64
	getJSON(t, ts.URL+"/api/damage", &damage)
	assert.Equal(t, uint64(500), damage["Hero"])

	var heals map[string]uint64
	getJSON(t, ts.URL+"/api/heals", &heals)
	assert.Equal(t, uint64(300), heals["Cleric"])

	var debuffs map[string][]combatlog.ActiveDebuff
	getJSON(t, ts.URL+"/api/debuffs", &debuffs)
	assert.Empty(t, debuffs)

	var retribution map[string]int64
	getJSON(t, ts.URL+"/api/retribution", &retribution)
	assert.Empty(t, retribution)
}

func TestPlayerHistory(t *testing.T) {
	eng, ts := newTestServer(t)
	eng.ApplyLine(lineCharge)
	eng.ApplyLine(lineHeal)

	var incoming []map[string]any
	getJSON(t, ts.URL+"/api/players/Hero/incoming", &incoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, string(event.TypeHeal), incoming[0]["type"])

	var outgoing []map[string]any
	getJSON(t, ts.URL+"/api/players/Hero/outgoing", &outgoing)
	require.Len(t, outgoing, 1)
	assert.Equal(t, string(event.TypeAttack), outgoing[0]["type"])

	var none []map[string]any
	getJSON(t, ts.URL+"/api/players/Nobody/incoming", &none)
	assert.Empty(t, none)
}

func TestControlEndpoints(t *testing.T) {
	eng, ts := newTestServer(t)
	eng.ApplyLine(lineCharge)

	resp := post(t, ts.URL+"/api/target", `{"name":"Boss"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Boss", eng.CurrentTarget())

	resp = post(t, ts.URL+"/api/reset", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, eng.Damage())
	assert.Equal(t, "", eng.CurrentTarget())

	resp = post(t, ts.URL+"/api/path", `{"path":"/games/Combat.log"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/games/Combat.log", eng.SelectedPath())

	resp = post(t, ts.URL+"/api/path", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/api/search-everywhere", `{"enabled":true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, eng.SearchEverywhere())

	resp = post(t, ts.URL+"/api/search-everywhere", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/api/target", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Combat.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	eng, ts := newTestServer(t, combatlog.WithTailInterval(20*time.Millisecond))

	resp := post(t, ts.URL+"/api/start", `{"path":"`+filepath.ToSlash(path)+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Running)
	assert.Equal(t, filepath.ToSlash(path), status.SelectedPath)

	resp = post(t, ts.URL+"/api/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, eng.Running())

	require.NoError(t, eng.Close())
	resp = post(t, ts.URL+"/api/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRelocate(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(root, "Game", "Combat.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0o755))
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	_, ts := newTestServer(t, combatlog.WithSearchRoots(root))

	resp := post(t, ts.URL+"/api/relocate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var paths Paths
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&paths))
	assert.Equal(t, []string{logPath}, paths.Paths)
	assert.False(t, paths.Searching)

	var again Paths
	getJSON(t, ts.URL+"/api/paths", &again)
	assert.Equal(t, paths, again)
}

func TestStatus(t *testing.T) {
	eng, ts := newTestServer(t)
	eng.SetCurrentTarget("Boss")

	var status Status
	getJSON(t, ts.URL+"/healthz", &status)
	assert.False(t, status.Running)
	assert.Equal(t, "Boss", status.CurrentTarget)
}

func TestWebSocketStream(t *testing.T) {
	eng, ts := newTestServer(t)
	eng.ApplyLine(lineCharge)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, KindSnapshot, first.Kind)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, uint64(500), first.Snapshot.Damage["Hero"])

	eng.ApplyLine(lineHeal)

	var next Message
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, KindChange, next.Kind)
	require.NotNil(t, next.Change)
	assert.Equal(t, combatlog.FieldHeals, next.Change.Field)
	assert.Equal(t, "Cleric", next.Change.Player)
	assert.Equal(t, "300", next.Change.Value)
}

func TestWebSocketClosedWithEngine(t *testing.T) {
	eng, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))

	require.NoError(t, eng.Close())
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestRun(t *testing.T) {
	eng, err := combatlog.NewEngine()
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- New(eng, nil).Run(ctx, "127.0.0.1:0", ready) }()

	addr := <-ready
	var status Status
	getJSON(t, "http://"+addr.String()+"/api/status", &status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}
