package httpbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/logger"
	"github.com/kbukum/streamfetch/plugin"
	"github.com/kbukum/streamfetch/protocol"
	"github.com/kbukum/streamfetch/server"
	"github.com/kbukum/streamfetch/server/middleware"
	"github.com/kbukum/streamfetch/validation"
)

// Route paths.
const (
	PathEvents = "/v1/events"
	PathFetch  = "/v1/fetch"
)

// Handler serves a plugin over HTTP.
type Handler struct {
	plugin *plugin.Plugin
	codec  protocol.Codec
	cfg    Config
	log    *logger.Logger

	// streams ends every open event stream when canceled.
	streams     context.Context
	stopStreams context.CancelFunc
}

// NewHandler creates a handler for p.
func NewHandler(p *plugin.Plugin, cfg Config, log *logger.Logger) (*Handler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	h := &Handler{
		plugin: p,
		codec:  codec,
		cfg:    cfg,
		log:    log.WithComponent("httpbridge"),
	}
	h.streams, h.stopStreams = context.WithCancel(context.Background())
	return h, nil
}

// Mount registers the bridge routes on s. The event stream is mounted on
// the server mux directly so it is not subject to Gin's writer; mw applies
// to the submission and cancel routes. Open streams end when s shuts down.
func (h *Handler) Mount(s *server.Server, mw ...gin.HandlerFunc) {
	s.Handle("GET "+PathEvents, http.HandlerFunc(h.ServeEvents))
	h.Register(s.GinEngine(), mw...)
	s.OnShutdown(h.CloseStreams)
}

// Register adds the submission and cancel routes to r.
func (h *Handler) Register(r gin.IRouter, mw ...gin.HandlerFunc) {
	g := r.Group(PathFetch, mw...)
	g.POST("", h.submit)
	g.DELETE("/:id", h.cancel)
}

// CloseStreams ends every open event stream.
func (h *Handler) CloseStreams() {
	h.stopStreams()
}

func (h *Handler) submit(c *gin.Context) {
	listenerID := c.GetHeader(middleware.HeaderListenerID)
	if err := validation.NewParams().ListenerID(middleware.HeaderListenerID, listenerID).Err(); err != nil {
		server.RespondWithError(c, err)
		return
	}

	var req protocol.Request
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	ctx := logger.ContextWithListenerID(c.Request.Context(), listenerID)
	resp, err := h.plugin.StreamFetch(ctx, listenerID, req)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondJSON(c, http.StatusOK, resp)
}

func (h *Handler) cancel(c *gin.Context) {
	params := validation.NewParams()
	id := params.RequestID("id", c.Param("id"))
	if err := params.Err(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if !h.plugin.Cancel(id) {
		server.RespondWithError(c, apperrors.NotFound("request", id.String()))
		return
	}
	server.RespondNoContent(c)
}

// ServeEvents streams the events of a new listener until the client
// disconnects, the listener is removed or the handler is closed.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.log.Error("Streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Event streams are long-lived; the server's timeouts must not end them.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Warn("Could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}
	_ = rc.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.streams, cancel)
	defer stop()

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	out := &eventWriter{w: w, flusher: flusher}
	defer out.close()

	sub, err := h.plugin.AddListener(ctx, func(ev protocol.Event) {
		data, err := h.codec.Encode(ev)
		if err != nil {
			h.log.Error("encode stream event", logger.Fields(
				logger.FieldRequestID, int64(ev.RequestID),
				logger.FieldError, err.Error(),
			))
			return
		}
		if err := out.send(protocol.EventName, data); err != nil {
			cancel()
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Remove()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set(middleware.HeaderListenerID, sub.ID())

	hello, _ := json.Marshal(connectedEvent{ListenerID: sub.ID()})
	if err := out.send(EventConnected, hello); err != nil {
		return
	}

	log := h.log.WithFields(logger.Fields(logger.FieldListenerID, sub.ID()))
	log.Debug("Event stream opened", logger.Fields("remote_addr", r.RemoteAddr, "codec", h.codec.Name()))

	keepAlive := time.NewTicker(h.cfg.KeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("Event stream closed", logger.Fields("reason", context.Cause(ctx).Error()))
			return
		case <-sub.Done():
			log.Debug("Event stream closed", logger.Fields("reason", "listener removed"))
			return
		case <-keepAlive.C:
			if err := out.comment("keepalive"); err != nil {
				return
			}
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(appErr.ToResponse())
}
