package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/generator"
	tbtest "github.com/teranos/threatbrief/internal/testing"
	"github.com/teranos/threatbrief/internal/transport/reportdto"
	"github.com/teranos/threatbrief/pipeline"
	"github.com/teranos/threatbrief/roles"
	"github.com/teranos/threatbrief/server/wslogs"
	"github.com/teranos/threatbrief/stages"
)

func dialStream(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/generator/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// readAll reads until the final message; log batches are returned separately
func readAll(t *testing.T, conn *websocket.Conn) []streamMessage {
	msgs, _ := readWithLogs(t, conn)
	return msgs
}

func readWithLogs(t *testing.T, conn *websocket.Conn) ([]streamMessage, []wslogs.Message) {
	t.Helper()
	var msgs []streamMessage
	var logs []wslogs.Message
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return msgs, logs
		}
		if msg.Type == "logs" {
			logs = append(logs, msg.Logs...)
			continue
		}
		msgs = append(msgs, msg)
		if msg.Type != "stage" {
			return msgs, logs
		}
	}
}

func TestStream(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialStream(t, env)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"threat":      "Ransomware",
		"threat_data": map[string]string{"host": "srv-01"},
	}))
	msgs := readAll(t, conn)

	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"analyze", "mitigate", "report"}, []string{msgs[0].Stage, msgs[1].Stage, msgs[2].Stage})
	assert.Equal(t, roles.ThreatAnalyzer, msgs[0].Role)
	assert.Equal(t, "complete", msgs[3].Type)
	assert.Equal(t, "## Executive Summary\nContained.", msgs[3].Report)
	assert.NotEmpty(t, msgs[3].RunID)
}

func TestStream_Logs(t *testing.T) {
	hub := wslogs.NewHub()
	log := zap.New(wslogs.NewRunCore(zapcore.InfoLevel, hub)).Sugar()

	gen := tbtest.NewScriptedGenerator()
	bp, _ := stages.Builtin(stages.CompactName)
	svc := generator.NewService(bp, roles.Default(),
		pipeline.NewExecutor(gen, pipeline.WithLogger(log)),
		generator.WithLogger(log))
	env := &testEnv{
		server: New(newTestConfig(t.TempDir()), svc, nil, log, WithLogHub(hub)),
		gen:    gen,
	}
	conn := dialStream(t, env)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"threat_data": map[string]int{"a": 1}}))
	msgs, logs := readWithLogs(t, conn)

	require.NotEmpty(t, msgs)
	final := msgs[len(msgs)-1]
	assert.Equal(t, "complete", final.Type)
	for _, m := range msgs {
		assert.Equal(t, final.RunID, m.RunID)
	}

	require.NotEmpty(t, logs)
	var texts []string
	for _, l := range logs {
		texts = append(texts, l.Message)
	}
	assert.Contains(t, texts, "Run started")
	assert.Equal(t, 0, hub.Watching())
}

func TestStream_CSV(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialStream(t, env)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"format":      "csv",
		"threat_data": "ip,label\n10.0.0.1,c2\n",
	}))
	msgs := readAll(t, conn)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "complete", msgs[len(msgs)-1].Type)

	analyze, _ := env.gen.PromptFor(roles.ThreatAnalyzer)
	assert.Contains(t, analyze, `[{"ip":"10.0.0.1","label":"c2"}]`)
}

func TestStream_Failure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.Fail(roles.MitigationStrategist, errors.New("quota exceeded"))
	conn := dialStream(t, env)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"threat": "x", "threat_data": map[string]int{"a": 1}}))
	msgs := readAll(t, conn)

	require.Len(t, msgs, 2)
	assert.Equal(t, "stage", msgs[0].Type)
	assert.Equal(t, "error", msgs[1].Type)
	assert.Equal(t, "mitigate", msgs[1].Stage)
	assert.Equal(t, reportdto.MsgGenerationFailed, msgs[1].Error)
	assert.False(t, env.gen.Called(roles.ReportGenerator))
}

func TestStream_BadRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialStream(t, env)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"format": "xml"}))
	msgs := readAll(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0].Type)
	assert.Equal(t, 0, env.gen.CallCount())
}

func TestServe_GracefulStop(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.cfg.Server.ShutdownTimeoutSeconds = 1

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, ServerStateStopped, env.server.getState())
}
