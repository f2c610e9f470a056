package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/drag"
	"github.com/plasmazones/plasmazones/internal/hotkeys"
	"github.com/plasmazones/plasmazones/internal/layout"
	"github.com/plasmazones/plasmazones/internal/mode"
	"github.com/plasmazones/plasmazones/internal/overlay"
	"github.com/plasmazones/plasmazones/internal/runtimepath"
	"github.com/plasmazones/plasmazones/internal/settings"
	"github.com/plasmazones/plasmazones/internal/tracking"
	"github.com/plasmazones/plasmazones/internal/x11"
	"github.com/plasmazones/plasmazones/internal/zone"
)

// Autotile algorithms the daemon knows about. The engines themselves live
// on the compositor side; the daemon only dispatches by id and tracks
// which one owns a screen. They claim the top quick slots, below the
// layout slots.
var autotileAlgorithms = []mode.Algorithm{
	{ID: "master-stack", Name: "Master Stack", Slot: 8},
	{ID: "spiral", Name: "Spiral", Slot: 9},
}

// daemon bundles the long-lived services behind the bus handlers.
type daemon struct {
	conn     *x11.Connection
	screens  *screenCache
	settings atomic.Pointer[settings.Settings]
	layouts  *layout.Manager
	tracking *tracking.Service
	modes    *mode.Tracker
	overlay  *overlay.Service
	coord    *drag.Coordinator
	srv      *bus.Server
	watcher  *x11.MonitorWatcher
	started  time.Time
	log      *slog.Logger
}

// screenCache is the monitor table the policy layer queries. Screens are
// keyed by the RandR stable output id so assignments survive connector
// renames; lookups also accept the connector name.
type screenCache struct {
	mu   sync.RWMutex
	mons []x11.Monitor
}

func toScreen(m x11.Monitor) drag.Screen {
	return drag.Screen{Name: m.StableID, Geometry: m.Geometry, WorkArea: m.WorkArea}
}

func (c *screenCache) update(mons []x11.Monitor) {
	c.mu.Lock()
	c.mons = mons
	c.mu.Unlock()
}

func (c *screenCache) Screens() []drag.Screen {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]drag.Screen, 0, len(c.mons))
	for _, m := range c.mons {
		out = append(out, toScreen(m))
	}
	return out
}

func (c *screenCache) ScreenAt(x, y int) (drag.Screen, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.mons {
		if m.Geometry.Contains(x, y) {
			return toScreen(m), true
		}
	}
	return drag.Screen{}, false
}

func (c *screenCache) ScreenByName(name string) (drag.Screen, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.mons {
		if m.StableID == name || m.Name == name {
			return toScreen(m), true
		}
	}
	return drag.Screen{}, false
}

func (c *screenCache) first() (drag.Screen, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.mons) == 0 {
		return drag.Screen{}, false
	}
	return toScreen(c.mons[0]), true
}

// busNotifier fans the coordinator's live feedback out as bus signals.
type busNotifier struct {
	srv *bus.Server
}

func (n *busNotifier) DragPreview(windowID string, g zone.Rect) {
	n.srv.Broadcast(bus.SignalDragPreview, bus.WindowGeometry{WindowID: windowID, Geometry: wireGeometry(g)})
}

func (n *busNotifier) DragRestoreSize(windowID string, width, height int) {
	n.srv.Broadcast(bus.SignalDragRestoreSize, bus.WindowGeometry{
		WindowID: windowID,
		Geometry: bus.Geometry{Width: width, Height: height},
	})
}

func (n *busNotifier) WindowFloatingChanged(stableID string, floating bool) {
	n.srv.Broadcast(bus.SignalWindowFloating, bus.FloatingChanged{StableID: stableID, Floating: floating})
}

func wireGeometry(r zone.Rect) bus.Geometry {
	return bus.Geometry{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func rectOf(g bus.Geometry) zone.Rect {
	return zone.Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

// context supplies the (desktop, activity) assignment keys. Activities are
// a shell concept with no X-visible handle, so only the virtual desktop
// participates.
func (d *daemon) context() (int, string) {
	desktop, err := d.conn.CurrentDesktop()
	if err != nil {
		return 0, ""
	}
	return desktop, ""
}

func (d *daemon) reloadSettings() {
	set, err := settings.Load()
	if err != nil {
		d.log.Error("settings reload failed", "error", err)
		return
	}
	d.settings.Store(set)
	d.tracking.SetStickyPolicy(set.StickyHandling)
	d.srv.Broadcast(bus.SignalSettingsChanged, bus.SettingsSnapshot{
		SkipTransients:  set.SkipTransients,
		MinWindowWidth:  set.MinWindowWidth,
		MinWindowHeight: set.MinWindowHeight,
		ExcludedClasses: set.ExcludedClasses,
	})
	d.log.Info("settings reloaded", "path", settings.DefaultConfigPath())
}

func runDaemon() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	set, err := settings.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	socket, err := runtimepath.SocketPath()
	if err != nil {
		log.Fatalf("Failed to resolve runtime directory: %v", err)
	}

	conn, err := x11.NewConnection()
	if err != nil {
		log.Fatalf("Failed to connect to X server: %v", err)
	}

	d := &daemon{conn: conn, started: time.Now(), log: logger}
	d.settings.Store(set)

	d.layouts = layout.NewManager(layout.Config{
		LayoutsDir: runtimepath.LayoutsDir(),
		StorePath:  runtimepath.AssignmentsPath(),
		Logger:     logger,
	})
	if err := d.layouts.Load(); err != nil {
		log.Fatalf("Failed to load layouts: %v", err)
	}
	log.Printf("Loaded %d layouts", len(d.layouts.Layouts()))

	d.tracking = tracking.NewService(tracking.Config{
		StatePath:    runtimepath.WindowStatePath(),
		StickyPolicy: set.StickyHandling,
		PruneAfter:   time.Duration(set.PruneAfterDays) * 24 * time.Hour,
		Logger:       logger,
	})

	d.modes, err = mode.NewTracker(mode.Config{
		Layouts:    d.layouts,
		Algorithms: autotileAlgorithms,
		StatePath:  runtimepath.ModeStatePath(),
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to restore mode state: %v", err)
	}

	d.screens = &screenCache{}
	mons, err := conn.GetMonitors()
	if err != nil {
		log.Fatalf("Failed to enumerate monitors: %v", err)
	}
	d.screens.update(mons)
	log.Printf("Tracking %d monitors", len(mons))

	d.overlay = overlay.NewService(conn.XUtil, conn.Root, overlay.Sources{
		Screen: func(name string) (overlay.ScreenInfo, bool) {
			scr, ok := d.screens.ScreenByName(name)
			if !ok {
				return overlay.ScreenInfo{}, false
			}
			return overlay.ScreenInfo{Name: scr.Name, Geometry: scr.Geometry, WorkArea: scr.WorkArea}, true
		},
		ActiveLayout: func(screen string) *zone.Layout {
			desktop, activity := d.context()
			return d.layouts.Resolve(screen, desktop, activity)
		},
		Layouts: d.layouts.Layouts,
		SelectorConfig: func(screen string) settings.SelectorConfig {
			return d.settings.Load().SelectorConfigFor(screen)
		},
		Gaps: func(l *zone.Layout) (int, int) {
			s := d.settings.Load()
			return l.EffectivePadding(s.ZonePadding), l.EffectiveOuterGap(s.OuterGap)
		},
	}, logger)

	d.srv = bus.NewServer(socket)

	d.coord = drag.NewCoordinator(drag.Config{
		Settings: func() *settings.Settings { return d.settings.Load() },
		Layouts:  d.layouts,
		Tracking: d.tracking,
		Overlay:  d.overlay,
		Screens:  d.screens,
		Autotile: d.modes,
		Escape:   hotkeys.NewHandler(conn.XUtil, conn.Root),
		Notify:   &busNotifier{srv: d.srv},
		Context:  d.context,
		Logger:   logger,
	})
	d.overlay.OnSnapAssistDismissed(d.coord.SnapAssistDismissed)

	d.layouts.OnChange(func(ev layout.Event) {
		d.coord.InvalidateLayout()
		// Assignment and activation moves snapped windows to the new
		// layout's geometry; agents pull the recomputed rects.
		if ev.Kind != layout.EventLayoutsChanged {
			d.srv.Broadcast(bus.SignalPendingRestores, nil)
		}
	})
	d.modes.OnChange(func(ch mode.Change) {
		d.overlay.ShowLayoutOsdOn(ch.Screen, ch.Name)
		d.srv.Broadcast(bus.SignalAutotileEnabled, bus.ModeChange{
			Screen:    ch.Screen,
			Autotiled: ch.Autotiled,
			Name:      ch.Name,
			ID:        ch.ID,
		})
	})

	d.registerHandlers()

	d.watcher = conn.WatchMonitors(func(mons []x11.Monitor) {
		d.screens.update(mons)
		d.coord.InvalidateLayout()
		d.srv.Broadcast(bus.SignalPendingRestores, nil)
	})

	if err := d.srv.Start(); err != nil {
		log.Fatalf("Failed to start bus server: %v", err)
	}
	log.Printf("Listening on %s", socket)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				d.reloadSettings()
				continue
			}
			log.Printf("Received %v, shutting down", sig)
			d.srv.Stop()
			d.overlay.Cleanup()
			d.watcher.Stop()
			conn.Close()
			os.Exit(0)
		}
	}()

	conn.EventLoop()
}
