package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/evidence"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/internal/transport/reportdto"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/pipeline"
	"github.com/teranos/threatbrief/server/wslogs"
)

// WebSocket timeouts following the gorilla chat example
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 10 << 20
)

// streamRequest is the first (and only) client message on /generator/stream
type streamRequest struct {
	Threat     string          `json:"threat"`
	ThreatData json.RawMessage `json:"threat_data"`
	Format     string          `json:"format"` // json (default), csv or yaml; csv/yaml data is sent as a JSON string
}

// streamMessage is sent to the client for each stage and once at the end
type streamMessage struct {
	Type   string           `json:"type"` // stage, logs, complete, error
	RunID  string           `json:"run_id,omitempty"`
	Stage  string           `json:"stage,omitempty"`
	Role   string           `json:"role,omitempty"`
	Output string           `json:"output,omitempty"`
	Report string           `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
	Logs   []wslogs.Message `json:"logs,omitempty"`
}

// HandleStream runs the pipeline for one request and pushes each stage
// output as it completes. Closing the socket cancels the run.
func (s *ReportServer) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}
	s.streams.Add(1)
	defer s.streams.Done()
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.sendStream(conn, streamMessage{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}
	raw, format, err := req.evidence()
	if err != nil {
		s.sendStream(conn, streamMessage{Type: "error", Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.watchClose(ctx, conn, cancel)

	runID := uuid.NewString()
	var batcher *wslogs.Batcher
	if s.logHub != nil {
		batcher = s.logHub.Watch(runID)
	}
	sendLogs := func(batch *wslogs.Batch) {
		if batch != nil {
			s.sendStream(conn, streamMessage{Type: "logs", RunID: runID, Logs: batch.Messages})
		}
	}

	out, err := s.service.Run(ctx, generator.Request{
		Threat:   req.Threat,
		Evidence: raw,
		Format:   format,
		RunID:    runID,
		OnStage: func(ev pipeline.Event) {
			if batcher != nil {
				sendLogs(batcher.Flush())
			}
			s.sendStream(conn, streamMessage{
				Type:   "stage",
				RunID:  runID,
				Stage:  string(ev.Stage.ID),
				Role:   ev.Stage.Role.Name,
				Output: ev.Output,
			})
		},
	})
	if s.logHub != nil {
		sendLogs(s.logHub.Release(runID))
	}
	if err != nil {
		msg := streamMessage{Type: "error", RunID: runID}
		_, msg.Error = reportdto.Status(err)
		if pe, ok := pipeline.AsPipelineError(err); ok {
			msg.Stage = string(pe.Stage)
			msg.Role = pe.Role
		}
		s.sendStream(conn, msg)
		return
	}

	s.sendStream(conn, streamMessage{Type: "complete", RunID: out.RunID, Report: out.Report()})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// evidence returns the raw evidence bytes and their format
func (req *streamRequest) evidence() ([]byte, evidence.Format, error) {
	format, err := evidence.ParseFormat(req.Format)
	if err != nil {
		return nil, "", err
	}
	if format == evidence.JSON || len(req.ThreatData) == 0 {
		return req.ThreatData, format, nil
	}
	var text string
	if err := json.Unmarshal(req.ThreatData, &text); err != nil {
		return nil, "", errors.NewInputErrorf("threat_data must be a string for %s evidence", format)
	}
	return []byte(text), format, nil
}

// watchClose cancels the run when the client goes away, and keeps the
// connection alive with pings while the run is in progress
func (s *ReportServer) watchClose(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			cancel()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cancel()
				return
			}
		}
	}
}

// sendStream writes one message. Writes come from a single goroutine per
// connection: the run's OnStage callback and the handler run sequentially.
func (s *ReportServer) sendStream(conn *websocket.Conn, msg streamMessage) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debugw("WebSocket write failed", logger.FieldError, err)
	}
}
