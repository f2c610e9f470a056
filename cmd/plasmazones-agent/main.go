// plasmazones-agent is the compositor-side half of the zone system: it
// watches the pointer and the window table over X, streams drag events to
// the daemon, applies committed snap geometries and executes navigation
// commands locally.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/hotkeys"
	"github.com/plasmazones/plasmazones/internal/nav"
	"github.com/plasmazones/plasmazones/internal/runtimepath"
	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/tracker"
	"github.com/plasmazones/plasmazones/internal/x11"
)

// reconcileInterval paces the window-table diff against the WM's client
// list. New and vanished windows are detected here, not per X event.
const reconcileInterval = time.Second

// defaultBindings are the built-in navigation shortcuts, grabbed unless
// -no-hotkeys is set (for sessions where the shell owns the keymap and
// forwards directives over the bus instead).
var defaultBindings = []struct {
	sequence  string
	directive string
}{
	{"Mod4-Left", "navigate:left"},
	{"Mod4-Right", "navigate:right"},
	{"Mod4-Up", "navigate:up"},
	{"Mod4-Down", "navigate:down"},
	{"Mod4-Shift-Left", "swap:left"},
	{"Mod4-Shift-Right", "swap:right"},
	{"Mod4-Shift-Up", "swap:up"},
	{"Mod4-Shift-Down", "swap:down"},
	{"Mod4-Control-Left", "focus:left"},
	{"Mod4-Control-Right", "focus:right"},
	{"Mod4-Control-Up", "focus:up"},
	{"Mod4-Control-Down", "focus:down"},
	{"Mod4-Tab", "cycle:forward"},
	{"Mod4-Shift-Tab", "cycle:backward"},
	{"Mod4-Shift-f", "float"},
	{"Mod4-Shift-r", "restore"},
	{"Mod4-o", "rotate"},
}

type agent struct {
	conn    *x11.Connection
	client  *bus.Client
	reg     *windowRegistry
	mons    *monitorCache
	windows *xWindows
	trk     *tracker.Tracker
	exec    *nav.Executor
	log     *slog.Logger
}

func (a *agent) emit(method string, payload any) {
	if err := a.client.Emit(method, payload); err != nil {
		a.log.Warn("event lost", "method", method, "error", err)
	}
}

// reconcile diffs the WM's client list against the registry, announcing
// new and vanished windows to the daemon.
func (a *agent) reconcile() {
	wins, err := a.conn.ClientList()
	if err != nil {
		a.log.Warn("client list unavailable", "error", err)
		return
	}
	seen := make(map[string]bool, len(wins))
	order := make([]string, 0, len(wins))
	for _, win := range wins {
		id := a.conn.WindowID(win)
		seen[id] = true
		order = append(order, id)
		if !a.reg.known(id) {
			a.reg.add(id, win)
			a.onWindowAdded(id)
		}
	}
	for _, id := range a.reg.fullIDs() {
		if !seen[id] {
			a.reg.remove(id)
			a.emit(bus.MethodWindowClosed, bus.WindowRef{WindowID: id})
		}
	}
	a.reg.setOrder(order)
}

// onWindowAdded registers the window with the daemon and re-snaps it to
// its remembered zone, preferring the one-shot persisted restore that
// survives daemon restarts.
func (a *agent) onWindowAdded(id string) {
	screen, _ := a.windows.ScreenOf(id)
	a.emit(bus.MethodWindowAdded, bus.WindowRef{WindowID: id, Screen: screen})

	if !a.windows.IsNormalWindow(id) || a.windows.IsTransient(id) {
		return
	}

	ref := bus.WindowRef{WindowID: id, Screen: screen}
	var target bus.SnapTarget
	if err := a.client.Call(bus.MethodRestoreToPersistedZone, ref, &target); err != nil {
		a.log.Warn("restore query failed", "window", id, "error", err)
		return
	}
	if !target.ShouldRestore {
		if err := a.client.Call(bus.MethodSnapToLastZone, ref, &target); err != nil || !target.ShouldRestore {
			return
		}
	}

	a.windows.MoveResize(id, rectOf(target.Geometry))
	a.emit(bus.MethodWindowSnapped, bus.WindowSnap{WindowID: id, ZoneID: target.ZoneID, Screen: screen})
	a.emit(bus.MethodRecordSnapIntent, bus.SnapIntent{WindowID: id})
}

func (a *agent) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.reconcile()
		}
	}
}

// applyPendingRestores pulls the recomputed snap rects after a layout or
// work-area change and applies them in one pass.
func (a *agent) applyPendingRestores() {
	var updates bus.GeometryUpdates
	if err := a.client.Call(bus.MethodGetUpdatedGeometries, nil, &updates); err != nil {
		a.log.Warn("geometry updates unavailable", "error", err)
		return
	}
	for _, u := range updates.Updates {
		a.windows.MoveResize(u.WindowID, rectOf(u.Geometry))
	}
	if len(updates.Updates) > 0 {
		a.log.Info("reapplied snap geometries", "count", len(updates.Updates))
	}
}

func (a *agent) subscribe() {
	navSignals := []string{
		bus.SignalMoveWindowToZone,
		bus.SignalFocusWindowInZone,
		bus.SignalRestoreWindow,
		bus.SignalToggleWindowFloat,
		bus.SignalSwapWindows,
		bus.SignalRotateWindows,
		bus.SignalCycleWindowsInZone,
	}
	for _, method := range navSignals {
		a.client.OnSignal(method, func(p json.RawMessage) { a.exec.HandleSignal(method, p) })
	}

	a.client.OnSignal(bus.SignalSettingsChanged, func(p json.RawMessage) {
		var snap bus.SettingsSnapshot
		if err := json.Unmarshal(p, &snap); err != nil {
			a.log.Warn("bad settings snapshot", "error", err)
			return
		}
		a.trk.SetFilters(tracker.Filters{
			SkipTransients:  snap.SkipTransients,
			MinWindowWidth:  snap.MinWindowWidth,
			MinWindowHeight: snap.MinWindowHeight,
		})
		a.log.Info("participation filters updated")
	})

	a.client.OnSignal(bus.SignalPendingRestores, func(json.RawMessage) {
		a.applyPendingRestores()
	})

	a.client.OnSignal(bus.SignalWindowFloating, func(p json.RawMessage) {
		var ch bus.FloatingChanged
		if err := json.Unmarshal(p, &ch); err != nil {
			return
		}
		a.log.Debug("floating changed", "window", ch.StableID, "floating", ch.Floating)
	})

	a.client.OnSignal(bus.SignalAutotileEnabled, func(p json.RawMessage) {
		var ch bus.ModeChange
		if err := json.Unmarshal(p, &ch); err != nil {
			return
		}
		a.log.Info("tiling mode changed", "screen", ch.Screen, "autotiled", ch.Autotiled, "name", ch.Name)
	})
}

// runDirective executes a shortcut-sourced directive. Rotate round-trips
// through the daemon because the move plan needs the full zone table;
// everything else runs locally.
func (a *agent) runDirective(directive string) {
	switch directive {
	case "restore":
		a.exec.Restore()
	case "float":
		a.exec.ToggleFloat()
	case "rotate":
		screen := ""
		if id, ok := a.windows.ActiveWindow(); ok {
			screen, _ = a.windows.ScreenOf(id)
		}
		if screen == "" {
			if m, ok := a.mons.primary(); ok {
				screen = m.StableID
			}
		}
		if err := a.client.Call(bus.MethodNavCommand, bus.NavCommand{Directive: "rotate", Screen: screen}, nil); err != nil {
			a.log.Warn("rotate failed", "error", err)
		}
	default:
		a.exec.HandleDirective(directive)
	}
}

func (a *agent) registerHotkeys() {
	hk := hotkeys.NewHandler(a.conn.XUtil, a.conn.Root)
	for _, b := range defaultBindings {
		if err := hk.RegisterFunc(b.sequence, func() { a.runDirective(b.directive) }); err != nil {
			a.log.Warn("shortcut grab failed", "sequence", b.sequence, "error", err)
		}
	}
}

func main() {
	noHotkeys := flag.Bool("no-hotkeys", false, "Do not grab the built-in navigation shortcuts")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: plasmazones-agent [options]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	conn, err := x11.NewConnection()
	if err != nil {
		log.Fatalf("Failed to connect to X server: %v", err)
	}

	socket, err := runtimepath.SocketPath()
	if err != nil {
		log.Fatalf("Failed to resolve runtime directory: %v", err)
	}
	client, err := bus.Dial(socket)
	if err != nil {
		log.Fatalf("Failed to reach daemon at %s: %v", socket, err)
	}

	// The agent reads the shared config for its initial filters; later
	// changes arrive as settingsChanged broadcasts.
	set, err := settings.Load()
	if err != nil {
		logger.Warn("settings unavailable, using defaults", "error", err)
		set = settings.Default()
	}

	a := &agent{
		conn:   conn,
		client: client,
		reg:    newWindowRegistry(),
		mons:   &monitorCache{},
		log:    logger,
	}
	a.windows = &xWindows{conn: conn, reg: a.reg, mons: a.mons, log: logger}
	a.trk = tracker.New(tracker.Config{
		Source:  a.windows,
		Sink:    &busSink{client: client, log: logger},
		Applier: a.windows,
		Filters: tracker.FiltersFromSettings(set),
		Logger:  logger,
	})
	a.exec = nav.New(&busDaemon{client: client, log: logger}, a.windows, logger)

	mons, err := conn.GetMonitors()
	if err != nil {
		log.Fatalf("Failed to enumerate monitors: %v", err)
	}
	a.mons.update(mons)

	watcher := conn.WatchMonitors(func(mons []x11.Monitor) {
		a.mons.update(mons)
		if m, ok := a.mons.primary(); ok {
			a.emit(bus.MethodWorkAreaNotif, bus.WorkAreaChanged{Screen: m.StableID, WorkArea: wireGeometry(m.WorkArea)})
		}
	})

	a.subscribe()
	if !*noHotkeys {
		a.registerHotkeys()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %v, shutting down", sig)
		cancel()
		client.Close()
		watcher.Stop()
		conn.Close()
		os.Exit(0)
	}()

	a.reconcile()
	go a.reconcileLoop(ctx)
	go a.trk.Run(ctx)

	log.Printf("Agent connected to %s", socket)
	conn.EventLoop()
}
