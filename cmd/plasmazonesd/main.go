package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/plasmazones/plasmazones/internal/bus"
	"github.com/plasmazones/plasmazones/internal/runtimepath"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if len(os.Args) > 2 {
			fmt.Fprintln(os.Stderr, "run takes no arguments")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Usage: plasmazonesd run")
			os.Exit(2)
		}
		runDaemon()
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "layouts":
		os.Exit(runLayouts(os.Args[2:]))
	case "assign":
		os.Exit(runAssign(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "nav":
		os.Exit(runNav(os.Args[2:]))
	case "mode":
		os.Exit(runMode(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: plasmazonesd <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run                 Start the zone daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  layouts             List loaded layouts")
	fmt.Fprintln(w, "  assign              Assign a layout to a screen")
	fmt.Fprintln(w, "  reload              Reload settings from disk")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  nav                 Send a navigation command to the active window")
	fmt.Fprintln(w, "  mode slot           Apply quick slot 1..9 on a screen")
	fmt.Fprintln(w, "  mode toggle         Toggle between last manual layout and autotile")
	fmt.Fprintln(w, "  mode cycle          Cycle layouts and algorithms")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'plasmazonesd <command> --help' for command-specific options.")
}

func dialDaemon() (*bus.Client, error) {
	socket, err := runtimepath.SocketPath()
	if err != nil {
		return nil, err
	}
	return bus.Dial(socket)
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: plasmazonesd status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status over the session bus.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client, err := dialDaemon()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	var status bus.StatusReply
	if err := client.Call(bus.MethodStatus, nil, &status); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("running:        %v\n", status.Running)
	fmt.Printf("active_layout:  %s\n", status.ActiveLayout)
	fmt.Printf("layout_count:   %d\n", status.LayoutCount)
	fmt.Printf("tracked_count:  %d\n", status.TrackedCount)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	return 0
}

func runLayouts(args []string) int {
	fs := flag.NewFlagSet("layouts", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: plasmazonesd layouts")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List loaded layouts with their ids.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	client, err := dialDaemon()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	var reply bus.LayoutListReply
	if err := client.Call(bus.MethodListLayouts, nil, &reply); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, l := range reply.Layouts {
		kind := "user"
		if l.Builtin {
			kind = "builtin"
		}
		fmt.Printf("%s  %-20s %d zones (%s)\n", l.ID, l.Name, l.ZoneCount, kind)
	}
	return 0
}

func runAssign(args []string) int {
	fs := flag.NewFlagSet("assign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: plasmazonesd assign --screen SCREEN [--desktop N] [--activity ID] <layout-id>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Bind a layout to a screen context. Desktop 0 means any desktop.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	screen := fs.String("screen", "", "Target screen")
	desktop := fs.Int("desktop", 0, "Virtual desktop (0 = any)")
	activity := fs.String("activity", "", "Activity id (empty = any)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if *screen == "" || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "assign requires --screen and <layout-id>")
		fs.Usage()
		return 2
	}

	client, err := dialDaemon()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	req := bus.AssignRequest{
		Screen:   *screen,
		Desktop:  *desktop,
		Activity: *activity,
		LayoutID: fs.Arg(0),
	}
	if err := client.Call(bus.MethodAssignLayout, req, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: plasmazonesd reload")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Reload settings from disk and rebroadcast them to agents.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	client, err := dialDaemon()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	if err := client.Call(bus.MethodReloadConfig, nil, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runNav(args []string) int {
	fs := flag.NewFlagSet("nav", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: plasmazonesd nav [--screen SCREEN] <directive>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Directives:")
		fmt.Fprintln(os.Stderr, "  navigate:<left|right|up|down>   Snap the active window to the adjacent zone")
		fmt.Fprintln(os.Stderr, "  focus:<left|right|up|down>      Focus the adjacent zone's frontmost window")
		fmt.Fprintln(os.Stderr, "  swap:<left|right|up|down>       Swap with the adjacent zone's window")
		fmt.Fprintln(os.Stderr, "  cycle:<forward|backward>        Cycle windows within the current zone")
		fmt.Fprintln(os.Stderr, "  restore                         Restore the pre-snap geometry")
		fmt.Fprintln(os.Stderr, "  float                           Toggle the floating override")
		fmt.Fprintln(os.Stderr, "  rotate                          Rotate windows through the layout's zones")
	}
	screen := fs.String("screen", "", "Screen for screen-scoped directives (rotate)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "nav requires <directive>")
		fs.Usage()
		return 2
	}

	client, err := dialDaemon()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	cmd := bus.NavCommand{Directive: fs.Arg(0), Screen: *screen}
	if err := client.Call(bus.MethodNavCommand, cmd, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func printModeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  plasmazonesd mode slot --screen SCREEN <1..9>")
	fmt.Fprintln(w, "  plasmazonesd mode toggle --screen SCREEN")
	fmt.Fprintln(w, "  plasmazonesd mode cycle --screen SCREEN [--backward]")
}

func runMode(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printModeUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "slot":
		fs := flag.NewFlagSet("slot", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		screen := fs.String("screen", "", "Target screen")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *screen == "" || fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "mode slot requires --screen and <1..9>")
			return 2
		}
		var slot int
		if _, err := fmt.Sscanf(fs.Arg(0), "%d", &slot); err != nil {
			fmt.Fprintf(os.Stderr, "bad slot %q\n", fs.Arg(0))
			return 2
		}
		return modeCall(bus.MethodApplySlot, bus.SlotRequest{Slot: slot, Screen: *screen})

	case "toggle":
		fs := flag.NewFlagSet("toggle", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		screen := fs.String("screen", "", "Target screen")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *screen == "" {
			fmt.Fprintln(os.Stderr, "mode toggle requires --screen")
			return 2
		}
		return modeCall(bus.MethodSmartToggle, bus.SlotRequest{Screen: *screen})

	case "cycle":
		fs := flag.NewFlagSet("cycle", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		screen := fs.String("screen", "", "Target screen")
		backward := fs.Bool("backward", false, "Cycle backward")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *screen == "" {
			fmt.Fprintln(os.Stderr, "mode cycle requires --screen")
			return 2
		}
		directive := "forward"
		if *backward {
			directive = "backward"
		}
		return modeCall(bus.MethodCycleLayout, bus.NavCommand{Directive: directive, Screen: *screen})

	default:
		fmt.Fprintf(os.Stderr, "Unknown mode command: %s\n\n", args[0])
		printModeUsage(os.Stderr)
		return 2
	}
}

func modeCall(method string, payload any) int {
	client, err := dialDaemon()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	var name bus.StringReply
	if err := client.Call(method, payload, &name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if name.Value != "" {
		fmt.Println(name.Value)
	}
	return 0
}
