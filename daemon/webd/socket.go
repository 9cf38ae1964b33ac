package webd

import (
	"encoding/json"

	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/events"
	"github.com/itrek/trekd/metrics"
	"github.com/olahol/melody"
)

// recentEventsN is how many public route events a new websocket client is sent on connect.
const recentEventsN = 20

// initMelody sets up the /feed websocket, which pushes public route events to every client.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()
	recent := common.NewRingBuffer[[]byte](recentEventsN)

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		metrics.ActiveWebSockets.Inc()
		s.logger.Debug("Websocket connected", "remote", sess.Request.RemoteAddr)
		// Replay is not ordered with Broadcast below: a client connecting mid-event
		// may get that event twice. Clients key on route id, so that is harmless.
		for _, msg := range recent.Get() {
			if err := sess.Write(msg); err != nil {
				s.logger.Warn("Failed to replay route event", "error", err)
				return
			}
		}
	})

	// Clients have nothing to tell us. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", sess.Request.RemoteAddr, "msg", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		metrics.ActiveWebSockets.Dec()
		s.logger.Debug("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, err error) {
		s.logger.Warn("Websocket error", "remote", sess.Request.RemoteAddr, "error", err)
	})

	routeEvents := make(chan events.RouteEvent)
	sub := events.PublicRouteFeed.Subscribe(routeEvents)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-routeEvents:
				b, err := json.Marshal(ev)
				if err != nil {
					s.logger.Error("Failed to marshal route event", "error", err)
					continue
				}
				if ev.Action == events.RouteRemoved {
					// A removed route must not be replayed as published to later clients.
					id := ev.Route.ID
					recent.Remove(func(msg []byte) bool { return eventRouteID(msg) == id })
				} else {
					recent.Add(b)
				}
				if s.melodyInstance.IsClosed() {
					return
				}
				if err := s.melodyInstance.Broadcast(b); err != nil {
					s.logger.Warn("Failed to broadcast route event", "error", err)
				}
			case err := <-sub.Err():
				if err != nil {
					s.logger.Error("Route feed subscription failed", "error", err)
				}
				return
			}
		}
	}()
}

func eventRouteID(msg []byte) uint64 {
	ev := events.RouteEvent{}
	if err := json.Unmarshal(msg, &ev); err != nil || ev.Route == nil {
		return 0
	}
	return ev.Route.ID
}
