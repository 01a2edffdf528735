package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/whalewatch/internal/events"
)

const (
	streamBufferSize = 64
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

// EventsStreamHandler pushes bus events to websocket clients as JSON frames.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws. An optional ?types= parameter takes a
// comma-separated list of event types; without it every type is streamed.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.eventBus == nil {
		http.Error(w, "Event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	types := parseEventTypes(r.URL.Query().Get("types"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// Clients only listen; reading is needed to process control frames.
	ctx := conn.CloseRead(r.Context())

	// Slow clients drop events rather than block the emitter.
	queue := make(chan *events.Event, streamBufferSize)
	ids := make([]events.SubscriptionID, 0, len(types))
	for _, t := range types {
		ids = append(ids, h.eventBus.Subscribe(t, func(event *events.Event) {
			select {
			case queue <- event:
			default:
				h.log.Warn().Str("event_type", string(event.Type)).Msg("Stream buffer full, dropping event")
			}
		}))
	}
	defer func() {
		for _, id := range ids {
			h.eventBus.Unsubscribe(id)
		}
	}()

	h.log.Debug().Int("types", len(types)).Msg("Events stream client connected")

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Events stream client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-queue:
			if err := writeWithTimeout(ctx, func(wctx context.Context) error {
				return wsjson.Write(wctx, conn, event)
			}); err != nil {
				h.log.Debug().Err(err).Msg("Failed to write event")
				return
			}
		case <-ping.C:
			if err := writeWithTimeout(ctx, conn.Ping); err != nil {
				h.log.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, write func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()
	return write(wctx)
}

func parseEventTypes(raw string) []events.EventType {
	if strings.TrimSpace(raw) == "" {
		return events.AllTypes
	}
	var types []events.EventType
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, events.EventType(t))
		}
	}
	return types
}
