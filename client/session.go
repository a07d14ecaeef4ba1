package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/world"
)

// DefaultWorld is the world opened when no route is given.
const DefaultWorld = "asdf"

// ErrUnknownRoute is returned for routes that do not name a world.
var ErrUnknownRoute = errors.New("unknown route")

// ParseRoute extracts the world id from a "worlds/:id" route. A leading '#'
// or '/' is ignored and an empty route selects DefaultWorld.
func ParseRoute(route string) (string, error) {
	r := strings.TrimLeft(strings.TrimSpace(route), "#/")
	if r == "" {
		return DefaultWorld, nil
	}
	prefix, id, ok := strings.Cut(strings.TrimRight(r, "/"), "/")
	if !ok || prefix != "worlds" || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnknownRoute, route)
	}
	return id, nil
}

// Active is the world currently shown by a Session.
type Active struct {
	State *world.State
	// Conn is nil when the socket could not be opened.
	Conn *Connection
	API  *API
}

// Drain applies queued messages, if there is a connection.
func (a *Active) Drain() int {
	if a == nil || a.Conn == nil {
		return 0
	}
	return a.Conn.Drain()
}

// Session follows route changes, keeping exactly one world connected.
type Session struct {
	baseURL string
	log     logrus.FieldLogger
	connOpt []Option
	apiOpt  []APIOption
	current *Active

	// OnWorld is called after every navigation with the new world.
	OnWorld func(*Active)
}

// NewSession creates a Session against the server at baseURL.
func NewSession(baseURL string, log logrus.FieldLogger, connOpts []Option, apiOpts []APIOption) *Session {
	if log == nil {
		log = discardLogger()
	}
	return &Session{
		baseURL: baseURL,
		log:     log,
		connOpt: append([]Option{WithLogger(log)}, connOpts...),
		apiOpt:  append([]APIOption{WithAPILogger(log)}, apiOpts...),
	}
}

// Current returns the active world, or nil before the first Navigate.
func (s *Session) Current() *Active { return s.current }

// Navigate closes the active connection and opens the world named by route.
// When the socket cannot be opened the new world is still installed, empty,
// and the dial error is returned.
func (s *Session) Navigate(ctx context.Context, route string) (*Active, error) {
	id, err := ParseRoute(route)
	if err != nil {
		return nil, err
	}

	if s.current != nil && s.current.Conn != nil {
		s.current.Conn.Close()
	}

	api, err := NewAPI(s.baseURL, id, s.apiOpt...)
	if err != nil {
		return nil, err
	}

	state := world.New(id)
	active := &Active{State: state, API: api}
	s.current = active

	conn, dialErr := Dial(ctx, s.baseURL, state, s.connOpt...)
	active.Conn = conn

	s.log.WithField("world_id", id).Info("navigated")
	if s.OnWorld != nil {
		s.OnWorld(active)
	}
	return active, dialErr
}

// Close closes the active connection.
func (s *Session) Close() error {
	if s.current == nil || s.current.Conn == nil {
		return nil
	}
	return s.current.Conn.Close()
}
