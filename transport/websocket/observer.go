package websocket

import (
	"github.com/griddy-sim/griddy/kernel/grid"
	"github.com/griddy-sim/griddy/kernel/object"
	"github.com/griddy-sim/griddy/kernel/observer"
)

// Observer wraps an inner observer.Observer and broadcasts every frame it
// produces to a session's connected WebSocket clients as an "observer_frame"
// event, in addition to returning the frame normally. This gives
// transport/websocket a genuine second Observer implementation alongside
// observer/text, rather than only broadcasting process.StateInfo out of
// band.
type Observer struct {
	inner     observer.Observer
	hub       *Hub
	sessionID string
}

// NewObserver returns an Observer that streams inner's frames to sessionID's
// subscribers over hub.
func NewObserver(inner observer.Observer, hub *Hub, sessionID string) *Observer {
	return &Observer{inner: inner, hub: hub, sessionID: sessionID}
}

func (o *Observer) Init(factory *object.Factory, width, height int32) error {
	return o.inner.Init(factory, width, height)
}

func (o *Observer) Reset(g *grid.Grid) (observer.Frame, error) {
	frame, err := o.inner.Reset(g)
	if err != nil {
		return frame, err
	}
	o.broadcast(frame)
	return frame, nil
}

func (o *Observer) Update(g *grid.Grid) (observer.Frame, error) {
	frame, err := o.inner.Update(g)
	if err != nil {
		return frame, err
	}
	o.broadcast(frame)
	return frame, nil
}

func (o *Observer) broadcast(frame observer.Frame) {
	o.hub.BroadcastEvent(o.sessionID, "observer_frame", frame)
}
