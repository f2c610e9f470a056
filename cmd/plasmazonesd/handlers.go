package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/tracking"
	"github.com/plasmazones/plasmazones/internal/zone"
)

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("bad payload: %w", err)
	}
	return v, nil
}

// detectorFor builds a zone detector for the layout currently resolved on
// the screen. Detectors are cheap; callers rebuild per request rather
// than invalidating a cache on every layout or work-area change.
func (d *daemon) detectorFor(screen string) (*zone.Detector, bool) {
	scr, ok := d.screens.ScreenByName(screen)
	if !ok {
		return nil, false
	}
	desktop, activity := d.context()
	l := d.layouts.Resolve(scr.Name, desktop, activity)
	if l == nil {
		return nil, false
	}
	set := d.settings.Load()
	return zone.NewDetector(l, scr.WorkArea, l.EffectivePadding(set.ZonePadding), l.EffectiveOuterGap(set.OuterGap)), true
}

func zoneInfoOf(det *zone.Detector, z *zone.Zone) (bus.ZoneInfo, bool) {
	if z == nil {
		return bus.ZoneInfo{}, false
	}
	g, ok := det.GeometryOf(z.ID)
	if !ok {
		return bus.ZoneInfo{}, false
	}
	return bus.ZoneInfo{ZoneID: z.ID.String(), Number: z.Number, Geometry: wireGeometry(g)}, true
}

func singleZoneReply(det *zone.Detector, z *zone.Zone) bus.ZoneListReply {
	info, ok := zoneInfoOf(det, z)
	if !ok {
		return bus.ZoneListReply{}
	}
	return bus.ZoneListReply{Zones: []bus.ZoneInfo{info}, Union: info.Geometry}
}

// snapTarget resolves a remembered zone id to its current geometry.
func (d *daemon) snapTarget(screen, zoneID string, ok bool) bus.SnapTarget {
	if !ok {
		return bus.SnapTarget{}
	}
	det, found := d.detectorFor(screen)
	if !found {
		return bus.SnapTarget{}
	}
	id, err := uuid.Parse(zoneID)
	if err != nil {
		return bus.SnapTarget{}
	}
	g, found := det.GeometryOf(id)
	if !found {
		return bus.SnapTarget{}
	}
	return bus.SnapTarget{ZoneID: zoneID, Geometry: wireGeometry(g), ShouldRestore: true}
}

// updatedGeometries recomputes the snap rect of every tracked window
// against the current layouts and work areas. Multi-zone spans collapse
// to the union of the surviving zones.
func (d *daemon) updatedGeometries() []bus.WindowGeometry {
	dets := make(map[string]*zone.Detector)
	var out []bus.WindowGeometry
	for _, sw := range d.tracking.SnappedWindows() {
		det, seen := dets[sw.ScreenID]
		if !seen {
			det, _ = d.detectorFor(sw.ScreenID)
			dets[sw.ScreenID] = det
		}
		if det == nil {
			continue
		}
		var union zone.Rect
		valid := false
		for _, zid := range sw.ZoneIDs {
			id, err := uuid.Parse(zid)
			if err != nil {
				continue
			}
			g, ok := det.GeometryOf(id)
			if !ok {
				continue
			}
			if !valid {
				union = g
				valid = true
			} else {
				union = union.Union(g)
			}
		}
		if valid {
			out = append(out, bus.WindowGeometry{WindowID: sw.StableID, Geometry: wireGeometry(union)})
		}
	}
	return out
}

// rotatePlan shifts every zone's occupants to the next zone in layout
// order and updates the tracking table to match. The agent applies the
// returned geometries; floating windows stay put.
func (d *daemon) rotatePlan(screen string) (bus.RotatePlan, error) {
	det, ok := d.detectorFor(screen)
	if !ok {
		return bus.RotatePlan{}, fmt.Errorf("no layout resolved on screen %q", screen)
	}
	zones := det.Layout().Zones
	if len(zones) < 2 {
		return bus.RotatePlan{}, nil
	}

	// Snapshot memberships before mutating the tracking table.
	type pending struct {
		window string
		zoneID string
		g      zone.Rect
	}
	var moves []pending
	for i := range zones {
		target := &zones[(i+1)%len(zones)]
		tg, ok := det.GeometryOf(target.ID)
		if !ok {
			continue
		}
		for _, w := range d.tracking.WindowsInZone(zones[i].ID.String()) {
			if d.tracking.IsWindowFloating(w) {
				continue
			}
			moves = append(moves, pending{window: w, zoneID: target.ID.String(), g: tg})
		}
	}

	var plan bus.RotatePlan
	for _, m := range moves {
		d.tracking.WindowSnapped(m.window, m.zoneID, screen)
		plan.Moves = append(plan.Moves, bus.WindowGeometry{WindowID: m.window, Geometry: wireGeometry(m.g)})
	}
	return plan, nil
}

func (d *daemon) registerHandlers() {
	s := d.srv

	// Drag pipeline.
	s.Handle(bus.MethodDragStarted, func(p json.RawMessage) (any, error) {
		ev, err := decode[bus.DragStarted](p)
		if err != nil {
			return nil, err
		}
		d.coord.HandleDragStarted(ev)
		return nil, nil
	})
	s.Handle(bus.MethodDragMoved, func(p json.RawMessage) (any, error) {
		ev, err := decode[bus.DragMoved](p)
		if err != nil {
			return nil, err
		}
		d.coord.HandleDragMoved(ev)
		return nil, nil
	})
	s.Handle(bus.MethodDragStopped, func(p json.RawMessage) (any, error) {
		ev, err := decode[bus.DragStopped](p)
		if err != nil {
			return nil, err
		}
		return d.coord.HandleDragStopped(ev), nil
	})
	s.Handle(bus.MethodWindowClose, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		d.coord.HandleWindowClosed(ref.WindowID)
		return nil, nil
	})

	// Window tracking table.
	s.Handle(bus.MethodWindowAdded, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		d.tracking.WindowAdded(ref.WindowID, ref.Screen)
		return nil, nil
	})
	s.Handle(bus.MethodWindowClosed, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		d.tracking.WindowClosed(ref.WindowID)
		return nil, nil
	})
	s.Handle(bus.MethodWindowActivated, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		// Activation refreshes the last-seen stamp so live windows never
		// age out of the persisted table.
		d.tracking.WindowAdded(ref.WindowID, ref.Screen)
		return nil, nil
	})
	s.Handle(bus.MethodWindowSnapped, func(p json.RawMessage) (any, error) {
		snap, err := decode[bus.WindowSnap](p)
		if err != nil {
			return nil, err
		}
		if len(snap.ZoneIDs) > 0 {
			d.tracking.WindowSnappedMultiZone(snap.WindowID, snap.ZoneIDs, snap.Screen)
		} else {
			d.tracking.WindowSnapped(snap.WindowID, snap.ZoneID, snap.Screen)
		}
		return nil, nil
	})
	s.Handle(bus.MethodWindowSnappedMultiZone, func(p json.RawMessage) (any, error) {
		snap, err := decode[bus.WindowSnap](p)
		if err != nil {
			return nil, err
		}
		d.tracking.WindowSnappedMultiZone(snap.WindowID, snap.ZoneIDs, snap.Screen)
		return nil, nil
	})
	s.Handle(bus.MethodWindowUnsnapped, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		d.tracking.WindowUnsnapped(ref.WindowID)
		return nil, nil
	})
	s.Handle(bus.MethodWindowUnsnappedForFloat, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		d.tracking.WindowUnsnappedForFloat(ref.WindowID)
		return nil, nil
	})
	s.Handle(bus.MethodSetWindowFloating, func(p json.RawMessage) (any, error) {
		flag, err := decode[bus.WindowFlag](p)
		if err != nil {
			return nil, err
		}
		d.tracking.SetWindowFloating(flag.WindowID, flag.Value)
		s.Broadcast(bus.SignalWindowFloating, bus.FloatingChanged{
			StableID: tracking.StableID(flag.WindowID),
			Floating: flag.Value,
		})
		return nil, nil
	})
	s.Handle(bus.MethodSetWindowSticky, func(p json.RawMessage) (any, error) {
		flag, err := decode[bus.WindowFlag](p)
		if err != nil {
			return nil, err
		}
		d.tracking.SetWindowSticky(flag.WindowID, flag.Value)
		return nil, nil
	})
	s.Handle(bus.MethodStorePreSnapGeometry, func(p json.RawMessage) (any, error) {
		wg, err := decode[bus.WindowGeometry](p)
		if err != nil {
			return nil, err
		}
		d.tracking.StorePreSnapGeometry(wg.WindowID, rectOf(wg.Geometry))
		return nil, nil
	})
	s.Handle(bus.MethodHasPreSnapGeometry, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		return bus.BoolReply{Value: d.tracking.HasPreSnapGeometry(ref.WindowID)}, nil
	})
	s.Handle(bus.MethodGetPreSnapGeometry, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		g, ok := d.tracking.ValidatedPreSnapGeometry(ref.WindowID)
		if !ok {
			return bus.GeometryReply{}, nil
		}
		return bus.GeometryReply{Geometry: wireGeometry(g), OK: true}, nil
	})
	s.Handle(bus.MethodClearPreSnapGeometry, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		d.tracking.ClearPreSnapGeometry(ref.WindowID)
		return nil, nil
	})
	s.Handle(bus.MethodGetPreFloatZone, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		return bus.StringReply{Value: d.tracking.PreFloatZone(ref.WindowID)}, nil
	})
	s.Handle(bus.MethodClearPreFloatZone, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		d.tracking.ClearPreFloatZone(ref.WindowID)
		return nil, nil
	})
	s.Handle(bus.MethodGetZoneForWindow, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		return bus.StringReply{Value: d.tracking.ZoneForWindow(ref.WindowID)}, nil
	})
	s.Handle(bus.MethodGetWindowsInZone, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		return bus.WindowListReply{Windows: d.tracking.WindowsInZone(q.ZoneID)}, nil
	})
	s.Handle(bus.MethodSnapToLastZone, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		zoneID, ok := d.tracking.SnapToLastZone(ref.WindowID, ref.Screen)
		return d.snapTarget(ref.Screen, zoneID, ok), nil
	})
	s.Handle(bus.MethodRestoreToPersistedZone, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		zoneID, ok := d.tracking.RestoreToPersistedZone(ref.WindowID, ref.Screen)
		return d.snapTarget(ref.Screen, zoneID, ok), nil
	})
	s.Handle(bus.MethodGetSnappedWindows, func(p json.RawMessage) (any, error) {
		snapped := d.tracking.SnappedWindows()
		windows := make([]string, 0, len(snapped))
		for _, sw := range snapped {
			windows = append(windows, sw.StableID)
		}
		return bus.WindowListReply{Windows: windows}, nil
	})
	s.Handle(bus.MethodGetUpdatedGeometries, func(p json.RawMessage) (any, error) {
		return bus.GeometryUpdates{Updates: d.updatedGeometries()}, nil
	})
	s.Handle(bus.MethodGetFloatingWindows, func(p json.RawMessage) (any, error) {
		return bus.WindowListReply{Windows: d.tracking.FloatingWindows()}, nil
	})
	s.Handle(bus.MethodQueryWindowFloating, func(p json.RawMessage) (any, error) {
		ref, err := decode[bus.WindowRef](p)
		if err != nil {
			return nil, err
		}
		return bus.BoolReply{Value: d.tracking.IsWindowFloating(ref.WindowID)}, nil
	})
	s.Handle(bus.MethodRecordSnapIntent, func(p json.RawMessage) (any, error) {
		intent, err := decode[bus.SnapIntent](p)
		if err != nil {
			return nil, err
		}
		d.tracking.RecordSnapIntent(intent.WindowID, intent.UserInitiated, intent.ViaSelector)
		return nil, nil
	})
	s.Handle(bus.MethodReportNavFeedback, func(p json.RawMessage) (any, error) {
		fb, err := decode[bus.NavFeedback](p)
		if err != nil {
			return nil, err
		}
		if fb.Success {
			d.log.Debug("navigation ok", "action", fb.Action)
			return nil, nil
		}
		d.log.Info("navigation failed", "action", fb.Action, "reason", fb.Reason)
		if scr, ok := d.screens.first(); ok {
			d.overlay.ShowLayoutOsdOn(scr.Name, fb.Action+": "+fb.Reason)
		}
		return nil, nil
	})

	// Zone geometry queries.
	s.Handle(bus.MethodGetAdjacentZone, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		dir, err := zone.ParseDirection(q.Direction)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(q.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("bad zone id %q: %w", q.ZoneID, err)
		}
		det, ok := d.detectorFor(q.Screen)
		if !ok {
			return bus.ZoneListReply{}, nil
		}
		return singleZoneReply(det, det.AdjacentZone(id, dir)), nil
	})
	s.Handle(bus.MethodGetFirstZoneInDirection, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		dir, err := zone.ParseDirection(q.Direction)
		if err != nil {
			return nil, err
		}
		det, ok := d.detectorFor(q.Screen)
		if !ok {
			return bus.ZoneListReply{}, nil
		}
		return singleZoneReply(det, det.FirstZoneInDirection(dir)), nil
	})
	s.Handle(bus.MethodGetZoneGeometry, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(q.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("bad zone id %q: %w", q.ZoneID, err)
		}
		// No screen given: the zone is searched on every screen's
		// resolved layout.
		for _, scr := range d.screens.Screens() {
			det, ok := d.detectorFor(scr.Name)
			if !ok {
				continue
			}
			if g, ok := det.GeometryOf(id); ok {
				return bus.GeometryReply{Geometry: wireGeometry(g), OK: true}, nil
			}
		}
		return bus.GeometryReply{}, nil
	})
	s.Handle(bus.MethodGetZoneGeometryForScreen, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(q.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("bad zone id %q: %w", q.ZoneID, err)
		}
		det, ok := d.detectorFor(q.Screen)
		if !ok {
			return bus.GeometryReply{}, nil
		}
		g, ok := det.GeometryOf(id)
		if !ok {
			return bus.GeometryReply{}, nil
		}
		return bus.GeometryReply{Geometry: wireGeometry(g), OK: true}, nil
	})
	s.Handle(bus.MethodDetectZoneAtPosition, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		screen := q.Screen
		if screen == "" {
			scr, ok := d.screens.ScreenAt(q.X, q.Y)
			if !ok {
				return bus.ZoneListReply{}, nil
			}
			screen = scr.Name
		}
		det, ok := d.detectorFor(screen)
		if !ok {
			return bus.ZoneListReply{}, nil
		}
		return singleZoneReply(det, det.ZoneAt(q.X, q.Y)), nil
	})
	s.Handle(bus.MethodDetectMultiZoneAt, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		screen := q.Screen
		if screen == "" {
			scr, ok := d.screens.ScreenAt(q.X, q.Y)
			if !ok {
				return bus.ZoneListReply{}, nil
			}
			screen = scr.Name
		}
		det, ok := d.detectorFor(screen)
		if !ok {
			return bus.ZoneListReply{}, nil
		}
		zones, union, ok := det.MultiZoneAt(q.X, q.Y, d.settings.Load().AdjacentThreshold)
		if !ok {
			return bus.ZoneListReply{}, nil
		}
		reply := bus.ZoneListReply{Union: wireGeometry(union)}
		for _, z := range zones {
			if info, ok := zoneInfoOf(det, z); ok {
				reply.Zones = append(reply.Zones, info)
			}
		}
		return reply, nil
	})
	s.Handle(bus.MethodGetAllZoneGeometries, func(p json.RawMessage) (any, error) {
		q, err := decode[bus.ZoneQuery](p)
		if err != nil {
			return nil, err
		}
		det, ok := d.detectorFor(q.Screen)
		if !ok {
			return bus.ZoneListReply{}, nil
		}
		l := det.Layout()
		var reply bus.ZoneListReply
		valid := false
		var union zone.Rect
		for i := range l.Zones {
			info, ok := zoneInfoOf(det, &l.Zones[i])
			if !ok {
				continue
			}
			reply.Zones = append(reply.Zones, info)
			if !valid {
				union = rectOf(info.Geometry)
				valid = true
			} else {
				union = union.Union(rectOf(info.Geometry))
			}
		}
		reply.Union = wireGeometry(union)
		return reply, nil
	})

	// Navigation fan-out. The daemon turns one directive into the matching
	// broadcast; the agent executes it with compositor access.
	s.Handle(bus.MethodNavCommand, func(p json.RawMessage) (any, error) {
		cmd, err := decode[bus.NavCommand](p)
		if err != nil {
			return nil, err
		}
		action := cmd.Directive
		if i := strings.IndexByte(action, ':'); i >= 0 {
			action = action[:i]
		}
		switch action {
		case "navigate":
			s.Broadcast(bus.SignalMoveWindowToZone, cmd)
		case "swap":
			s.Broadcast(bus.SignalSwapWindows, cmd)
		case "cycle":
			s.Broadcast(bus.SignalCycleWindowsInZone, cmd)
		case "focus":
			s.Broadcast(bus.SignalFocusWindowInZone, cmd)
		case "restore":
			s.Broadcast(bus.SignalRestoreWindow, cmd)
		case "float":
			s.Broadcast(bus.SignalToggleWindowFloat, cmd)
		case "rotate":
			plan, err := d.rotatePlan(cmd.Screen)
			if err != nil {
				return nil, err
			}
			s.Broadcast(bus.SignalRotateWindows, plan)
		default:
			return nil, fmt.Errorf("unknown directive %q", cmd.Directive)
		}
		return nil, nil
	})

	// Mode switching.
	s.Handle(bus.MethodApplySlot, func(p json.RawMessage) (any, error) {
		req, err := decode[bus.SlotRequest](p)
		if err != nil {
			return nil, err
		}
		ch, err := d.modes.ApplySlot(req.Screen, req.Slot)
		if err != nil {
			return nil, err
		}
		return bus.StringReply{Value: ch.Name}, nil
	})
	s.Handle(bus.MethodSmartToggle, func(p json.RawMessage) (any, error) {
		req, err := decode[bus.SlotRequest](p)
		if err != nil {
			return nil, err
		}
		ch, err := d.modes.SmartToggle(req.Screen)
		if err != nil {
			return nil, err
		}
		return bus.StringReply{Value: ch.Name}, nil
	})
	s.Handle(bus.MethodCycleLayout, func(p json.RawMessage) (any, error) {
		cmd, err := decode[bus.NavCommand](p)
		if err != nil {
			return nil, err
		}
		ch, err := d.modes.CycleLayout(cmd.Screen, cmd.Directive != "backward")
		if err != nil {
			return nil, err
		}
		return bus.StringReply{Value: ch.Name}, nil
	})

	// Control plane.
	s.Handle(bus.MethodStatus, func(p json.RawMessage) (any, error) {
		reply := bus.StatusReply{
			Running:       true,
			LayoutCount:   len(d.layouts.Layouts()),
			TrackedCount:  len(d.tracking.SnappedWindows()),
			UptimeSeconds: int64(time.Since(d.started).Seconds()),
		}
		if scr, ok := d.screens.first(); ok {
			desktop, activity := d.context()
			if l := d.layouts.Resolve(scr.Name, desktop, activity); l != nil {
				reply.ActiveLayout = l.Name
			}
		}
		return reply, nil
	})
	s.Handle(bus.MethodListLayouts, func(p json.RawMessage) (any, error) {
		var reply bus.LayoutListReply
		for _, l := range d.layouts.Layouts() {
			reply.Layouts = append(reply.Layouts, bus.LayoutInfo{
				ID:        l.ID.String(),
				Name:      l.Name,
				Type:      int(l.Type),
				ZoneCount: len(l.Zones),
				Builtin:   d.layouts.IsBuiltin(l.ID),
			})
		}
		return reply, nil
	})
	s.Handle(bus.MethodAssignLayout, func(p json.RawMessage) (any, error) {
		req, err := decode[bus.AssignRequest](p)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(req.LayoutID)
		if err != nil {
			return nil, fmt.Errorf("bad layout id %q: %w", req.LayoutID, err)
		}
		if err := d.layouts.Assign(req.Screen, req.Desktop, req.Activity, id); err != nil {
			return nil, err
		}
		return nil, nil
	})
	s.Handle(bus.MethodReloadConfig, func(p json.RawMessage) (any, error) {
		d.reloadSettings()
		return nil, nil
	})
	s.Handle(bus.MethodWorkAreaNotif, func(p json.RawMessage) (any, error) {
		if d.watcher != nil {
			d.watcher.Kick()
			return nil, nil
		}
		mons, err := d.conn.GetMonitors()
		if err != nil {
			return nil, err
		}
		d.screens.update(mons)
		d.coord.InvalidateLayout()
		s.Broadcast(bus.SignalPendingRestores, nil)
		return nil, nil
	})
}
