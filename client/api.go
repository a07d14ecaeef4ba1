package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/model"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// API issues mutation requests for one world. Responses are not read beyond
// their status; the resulting state change arrives over the Connection.
type API struct {
	base    *url.URL
	worldID string
	http    *http.Client
	log     logrus.FieldLogger
	onError func(error)
}

// APIOption configures an API.
type APIOption func(*API)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.http = c }
}

// WithAPILogger sets the logger used for failed requests.
func WithAPILogger(l logrus.FieldLogger) APIOption {
	return func(a *API) { a.log = l }
}

// OnError registers fn to be called with every failed request, whether or
// not anybody waits on the Task.
func OnError(fn func(error)) APIOption {
	return func(a *API) { a.onError = fn }
}

// NewAPI creates an API for world worldID on the server at baseURL.
func NewAPI(baseURL, worldID string, opts ...APIOption) (*API, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	a := &API{
		base:    u,
		worldID: worldID,
		http:    http.DefaultClient,
		log:     discardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// WorldID returns the world this API mutates.
func (a *API) WorldID() string { return a.worldID }

// CreateEdge asks the server to add the edge from -> to.
func (a *API) CreateEdge(ctx context.Context, from, to model.Position) *Task {
	return a.send(ctx, http.MethodPost, model.EdgeData{From: from, To: to}, "edges")
}

// DeleteEdge asks the server to remove the edge with the given key.
func (a *API) DeleteEdge(ctx context.Context, key model.EdgeKey) *Task {
	return a.send(ctx, http.MethodDelete, nil, "edges", string(key))
}

type createVehicleRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// CreateVehicle asks the server to place a vehicle on (x, y).
func (a *API) CreateVehicle(ctx context.Context, x, y int, color string) *Task {
	return a.send(ctx, http.MethodPost, createVehicleRequest{X: x, Y: y, Color: color}, "vehicles")
}

// DeleteVehicle asks the server to remove vehicle id.
func (a *API) DeleteVehicle(ctx context.Context, id model.VehicleID) *Task {
	return a.send(ctx, http.MethodDelete, nil, "vehicles", string(id))
}

// MoveVehicle asks the server to move vehicle id to pos.
func (a *API) MoveVehicle(ctx context.Context, id model.VehicleID, pos model.Position) *Task {
	return a.send(ctx, http.MethodPatch, pos, "vehicles", string(id))
}

func (a *API) send(ctx context.Context, method string, body interface{}, segments ...string) *Task {
	target := a.endpoint(segments...)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return Resolved(a.fail(fmt.Errorf("failed to encode request: %w", err)))
		}
	}

	return runTask(func() error {
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return a.fail(fmt.Errorf("failed to build request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.http.Do(req)
		if err != nil {
			return a.fail(fmt.Errorf("%s %s: %w", method, target, err))
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return a.fail(&StatusError{Method: method, URL: target, Code: resp.StatusCode})
		}
		return nil
	})
}

func (a *API) fail(err error) error {
	a.log.WithField("world_id", a.worldID).WithError(err).Warn("request failed")
	if a.onError != nil {
		a.onError(err)
	}
	return err
}

// endpoint builds /worlds/<id>/<segments...> under the base URL, escaping
// each segment the way encodeURIComponent does.
func (a *API) endpoint(segments ...string) string {
	u := *a.base
	parts := append([]string{"worlds", a.worldID}, segments...)

	path := strings.TrimRight(a.base.Path, "/")
	raw := strings.TrimRight(a.base.EscapedPath(), "/")
	for _, p := range parts {
		path += "/" + p
		raw += "/" + escapeSegment(p)
	}
	u.Path = path
	u.RawPath = raw
	return u.String()
}

func escapeSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
