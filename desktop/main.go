// Command desktop is the interactive traffic world editor.
//
// Drag across the grid to draw a road, drag again over an existing road to
// erase it, and click a cell to add or remove a vehicle. "+" and "-" (or the
// buttons in the corner) change the zoom.
//
//	desktop [world-id | #/worlds/<id>]
package main

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/joho/godotenv"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/client"
	"github.com/wricardo/traffic-editor/interact"
	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/render"
)

const (
	screenWidth  = 1024
	screenHeight = 768
	defaultURL   = "http://localhost:8080"

	buttonSize   = 32
	buttonMargin = 8
	statusTTL    = 4 * time.Second
	dialTimeout  = 5 * time.Second
)

var buttonColor = color.RGBA{0x33, 0x33, 0x33, 0xcc}

// button is an on-screen zoom control
type button struct {
	label string
	delta int
}

var zoomButtons = []button{{"+", 1}, {"-", -1}}

// Editor is the ebiten game driving one Session
type Editor struct {
	session *client.Session
	log     logrus.FieldLogger
	route   string

	scene   *render.Scene
	surface *interact.Surface
	zoom    int
	width   int
	height  int

	mouseX, mouseY int

	// status is written from REST goroutines
	statusMu   sync.Mutex
	status     string
	statusTime time.Time
}

// NewEditor creates an editor against the server at baseURL
func NewEditor(baseURL string, log logrus.FieldLogger) *Editor {
	e := &Editor{
		log:    log,
		zoom:   render.DefaultZoom,
		width:  screenWidth,
		height: screenHeight,
	}

	reconnect := client.WithReconnect(&backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	})
	e.session = client.NewSession(baseURL, log, []client.Option{reconnect}, []client.APIOption{
		client.OnError(func(err error) { e.setStatus(err.Error()) }),
	})
	e.session.OnWorld = e.install
	return e
}

// Navigate opens the world named by route
func (e *Editor) Navigate(route string) {
	e.route = route
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if _, err := e.session.Navigate(ctx, route); err != nil {
		e.log.WithError(err).Warn("failed to open world")
		e.setStatus(fmt.Sprintf("offline: %v", err))
	}
}

// install rebuilds the scene and pointer handling for a new world
func (e *Editor) install(active *client.Active) {
	if e.scene != nil {
		e.scene.Close()
	}
	e.scene = render.NewScene(active.State, e.width, e.height, render.WithZoom(e.zoom))
	e.surface = interact.NewSurface(active.State, active.API, e.scene,
		interact.WithLogger(e.log),
		interact.OnPreview(e.scene.SetPreview),
	)
}

func (e *Editor) setStatus(msg string) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status = msg
	e.statusTime = time.Now()
}

func (e *Editor) currentStatus() string {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	if time.Since(e.statusTime) > statusTTL {
		return ""
	}
	return e.status
}

func (e *Editor) changeZoom(delta int) {
	e.scene.ChangeZoom(delta)
	e.zoom = int(e.scene.Zoom())
}

// buttonAt returns the zoom button under pixel (x, y), if any
func (e *Editor) buttonAt(x, y int) (button, bool) {
	for i, b := range zoomButtons {
		bx, by := e.buttonOrigin(i)
		if x >= bx && x < bx+buttonSize && y >= by && y < by+buttonSize {
			return b, true
		}
	}
	return button{}, false
}

func (e *Editor) buttonOrigin(i int) (int, int) {
	return e.width - (buttonSize+buttonMargin)*(len(zoomButtons)-i), buttonMargin
}

// Update applies queued world events and handles input
func (e *Editor) Update() error {
	if active := e.session.Current(); active != nil {
		active.Drain()
	}
	if e.scene == nil {
		return nil
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		e.changeZoom(1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		e.changeZoom(-1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		e.Navigate(e.route)
	}

	x, y := ebiten.CursorPosition()
	moved := x != e.mouseX || y != e.mouseY
	e.mouseX, e.mouseY = x, y

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		if b, ok := e.buttonAt(x, y); ok {
			e.changeZoom(b.delta)
			return nil
		}
		e.surface.PointerDown(float64(x), float64(y))
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		e.surface.PointerUp(float64(x), float64(y))
	case moved && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		e.surface.PointerMove(float64(x), float64(y))
	}
	return nil
}

// Draw paints the scene, zoom buttons and status line
func (e *Editor) Draw(screen *ebiten.Image) {
	if e.scene == nil {
		ebitenutil.DebugPrint(screen, "connecting...")
		return
	}
	e.scene.Draw(screenPainter{dst: screen})

	for i, b := range zoomButtons {
		bx, by := e.buttonOrigin(i)
		vector.DrawFilledRect(screen, float32(bx), float32(by), buttonSize, buttonSize, buttonColor, false)
		ebitenutil.DebugPrintAt(screen, b.label, bx+buttonSize/2-3, by+buttonSize/2-8)
	}

	state := e.scene.State()
	cell := interact.CellAt(float64(e.mouseX), float64(e.mouseY), e.scene.Zoom())
	info := fmt.Sprintf("world %s | edges %d | vehicles %d | zoom %d | cell %s",
		state.ID(), len(state.Edges()), len(state.Vehicles()), e.zoom, cell)
	if v, ok := state.FindVehicle(cell.X, cell.Y); ok {
		info += fmt.Sprintf(" | vehicle %s", v.ID)
	}
	ebitenutil.DebugPrintAt(screen, info, 8, e.height-36)
	if msg := e.currentStatus(); msg != "" {
		ebitenutil.DebugPrintAt(screen, msg, 8, e.height-20)
	}
}

// Layout follows the window size
func (e *Editor) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != e.width || outsideHeight != e.height {
		e.width, e.height = outsideWidth, outsideHeight
		if e.scene != nil {
			e.scene.Resize(outsideWidth, outsideHeight)
		}
	}
	return outsideWidth, outsideHeight
}

func main() {
	godotenv.Load()
	log := logging.New()

	baseURL := os.Getenv("TRAFFIC_SERVER")
	if baseURL == "" {
		baseURL = defaultURL
	}
	route := ""
	if len(os.Args) > 1 {
		route = os.Args[1]
	}

	editor := NewEditor(baseURL, log)
	editor.Navigate(route)
	defer editor.session.Close()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Traffic World Editor")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(editor); err != nil {
		log.Fatal(err)
	}
}

var _ interact.Zoomer = (*render.Scene)(nil)
var _ render.Painter = screenPainter{}
