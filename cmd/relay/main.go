// Copyright 2026 The go-usbrelay Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command relay controls CH340-based USB relay boards.
//
//	relay list-ports [--detailed|--csv|--json]
//	relay [-p PORT] relay <n> <on|off|pulse> [--seconds N]
//	relay [-p PORT] all <on|off|pulse> [--seconds N]
//	relay [-p PORT] status <all|n> [--raw]
//	relay [-p PORT] raw <hex bytes...> [--raw]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	usbrelay "github.com/dstur/go-usbrelay"
	"github.com/dstur/go-usbrelay/detection"
	"github.com/dstur/go-usbrelay/transport/uart"
)

type config struct {
	port     string
	baud     int
	timeout  time.Duration
	channels int
	debug    bool
}

// Package-level flag variables
var (
	flagPort     string
	flagBaud     int
	flagTimeout  time.Duration
	flagChannels int
	flagDebug    bool
)

func init() {
	flag.StringVar(&flagPort, "port", "",
		"Serial port device (e.g. COM8 on Windows, /dev/ttyUSB0 on Linux); first detected port if omitted")
	flag.StringVar(&flagPort, "p", "", "Shorthand for -port")
	flag.IntVar(&flagBaud, "baud", uart.DefaultBaudRate, "Baud rate")
	flag.DurationVar(&flagTimeout, "timeout", uart.DefaultTimeout, "Serial read/write timeout")
	flag.IntVar(&flagChannels, "channels", usbrelay.DefaultChannels,
		"How many relays the board has (1..32)")
	flag.BoolVar(&flagDebug, "debug", false, "Print TX/RX bytes (hex) for troubleshooting")
}

// errUsage marks command-line mistakes; they exit with status 2.
var errUsage = errors.New("usage error")

// errReported marks failures whose message was already printed.
var errReported = errors.New("already reported")

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, `Usage: relay [global flags] COMMAND [args]

Commands:
  list-ports            List detected serial ports (--detailed, --csv, --json)
  relay N STATE         Control one relay: STATE is on, off or pulse
  all STATE             Control all relays (broadcast + per-channel loop)
  status TARGET         Query relay status: TARGET is a relay number or "all"
  raw BYTES...          Send raw hex bytes and read the response

Global flags:
`)
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(out, `
Examples:
  relay list-ports --detailed
  relay -p /dev/ttyUSB0 all on
  relay -p COM8 relay 3 pulse --seconds 1.5
  relay -p /dev/ttyUSB0 status all
  relay -p /dev/ttyUSB0 raw A0 01 01 A2

Notes:
- If -port is omitted, the first detected serial port is used; prefer
  running list-ports first to confirm which port is the relay board.
- "all" sends both a broadcast command and a channel 1..N loop for
  maximum compatibility across CH340 relay firmwares.
- "status" is device-dependent; some boards answer ASCII like CH1:OFFCH2:ON,
  many answer nothing at all.
`)
}

func parseConfig() *config {
	cfg := &config{
		port:     flagPort,
		baud:     flagBaud,
		timeout:  flagTimeout,
		channels: flagChannels,
		debug:    flagDebug,
	}

	if cfg.debug {
		usbrelay.SetDebugEnabled(true)
	}

	return cfg
}

// newDevice resolves the target port and assembles the control engine.
func newDevice(cfg *config) (*usbrelay.Device, string, error) {
	port, err := detection.ResolvePort(cfg.port)
	if err != nil {
		return nil, "", err
	}

	transport, err := uart.New(port,
		uart.WithBaudRate(cfg.baud),
		uart.WithTimeout(cfg.timeout))
	if err != nil {
		return nil, "", err
	}

	device, err := usbrelay.New(transport, usbrelay.WithChannels(cfg.channels))
	if err != nil {
		return nil, "", err
	}
	return device, port, nil
}

func runListPorts(args []string) error {
	fs := flag.NewFlagSet("list-ports", flag.ContinueOnError)
	detailed := fs.Bool("detailed", false, "Show detailed port info in a table")
	csvOut := fs.Bool("csv", false, "Output ports as CSV")
	jsonOut := fs.Bool("json", false, "Output ports as JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	selected := 0
	for _, b := range []bool{*detailed, *csvOut, *jsonOut} {
		if b {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("%w: --detailed, --csv and --json are mutually exclusive", errUsage)
	}

	ports, err := detection.Ports()
	if err != nil {
		return err
	}

	switch {
	case *csvOut:
		out, err := formatPortsCSV(ports)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case *jsonOut:
		out, err := formatPortsJSON(ports)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case *detailed:
		fmt.Println(formatPortsTable(ports))
	default:
		for _, p := range ports {
			fmt.Println(p.Path)
		}
	}
	return nil
}

// secondsToDuration converts the --seconds flag (fractional seconds, kept
// for compatibility with existing callers of this tool) to a duration.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func runRelay(ctx context.Context, cfg *config, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	seconds := fs.Float64("seconds", 1.0, "Pulse duration in seconds")
	if len(args) < 2 {
		return fmt.Errorf("%w: relay requires a number and a state (on, off or pulse)", errUsage)
	}
	number, state := args[0], args[1]
	if err := fs.Parse(args[2:]); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	n, err := strconv.Atoi(number)
	if err != nil {
		return fmt.Errorf("%w: relay number must be an integer, got %q", errUsage, number)
	}

	device, port, err := newDevice(cfg)
	if err != nil {
		return err
	}

	switch state {
	case "on", "off":
		st, _ := usbrelay.ParseState(state)
		if err := device.SetRelay(ctx, n, st); err != nil {
			return err
		}
		fmt.Printf("OK: relay%d %s (%s)\n", n, state, port)
	case "pulse":
		if err := device.PulseRelay(ctx, n, secondsToDuration(*seconds)); err != nil {
			return err
		}
		fmt.Printf("OK: relay%d pulse %gs (%s)\n", n, *seconds, port)
	default:
		return fmt.Errorf("%w: state must be on, off or pulse, got %q", errUsage, state)
	}
	return nil
}

func runAll(ctx context.Context, cfg *config, args []string) error {
	fs := flag.NewFlagSet("all", flag.ContinueOnError)
	seconds := fs.Float64("seconds", 3.0, "Pulse duration in seconds")
	if len(args) < 1 {
		return fmt.Errorf("%w: all requires a state (on, off or pulse)", errUsage)
	}
	state := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	device, port, err := newDevice(cfg)
	if err != nil {
		return err
	}

	switch state {
	case "on", "off":
		st, _ := usbrelay.ParseState(state)
		if err := device.SetAll(ctx, st); err != nil {
			return err
		}
		fmt.Printf("OK: all relays %s (broadcast + loop 1..%d) (%s)\n", state, device.Channels(), port)
	case "pulse":
		if err := device.PulseAll(ctx, secondsToDuration(*seconds)); err != nil {
			return err
		}
		fmt.Printf("OK: all relays pulse %gs (broadcast + loop 1..%d) (%s)\n", *seconds, device.Channels(), port)
	default:
		return fmt.Errorf("%w: state must be on, off or pulse, got %q", errUsage, state)
	}
	return nil
}

// statusValue renders an observed status the way the tool always has:
// 1 for on, 0 for off, ? for unknown.
func statusValue(st usbrelay.Status) string {
	switch st {
	case usbrelay.StatusOn:
		return "1"
	case usbrelay.StatusOff:
		return "0"
	default:
		return "?"
	}
}

func runStatus(ctx context.Context, cfg *config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	rawOut := fs.Bool("raw", false, "Print raw response hex too")
	if len(args) < 1 {
		return fmt.Errorf("%w: status requires a target (relay number or \"all\")", errUsage)
	}
	target := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	device, _, err := newDevice(cfg)
	if err != nil {
		return err
	}

	if target == "all" {
		states, raw, err := device.AllStatus(ctx)
		if err != nil {
			return err
		}
		if *rawOut {
			printRaw(raw)
		}
		parts := make([]string, 0, device.Channels())
		for ch := usbrelay.MinChannel; ch <= device.Channels(); ch++ {
			parts = append(parts, fmt.Sprintf("relay%d=%s", ch, statusValue(states[ch])))
		}
		fmt.Println(strings.Join(parts, " "))
		return nil
	}

	n, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("%w: status target must be a relay number or \"all\", got %q", errUsage, target)
	}

	st, raw, err := device.RelayStatus(ctx, n)
	if err != nil {
		return err
	}
	if *rawOut {
		printRaw(raw)
	}
	if st == usbrelay.StatusUnknown && !*rawOut {
		fmt.Println("Unable to decode status")
		return errReported
	}
	fmt.Printf("relay%d=%s\n", n, statusValue(st))
	return nil
}

func printRaw(raw []byte) {
	if len(raw) == 0 {
		fmt.Println("RAW: (no data)")
		return
	}
	fmt.Printf("RAW: %x\n", raw)
}

func runRaw(ctx context.Context, cfg *config, args []string) error {
	fs := flag.NewFlagSet("raw", flag.ContinueOnError)
	rawOut := fs.Bool("raw", false, "Print response as raw hex bytes")

	// Hex byte tokens come first, flags after.
	split := len(args)
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			split = i
			break
		}
	}
	if err := fs.Parse(args[split:]); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	payload, err := parseHexBytes(args[:split])
	if err != nil {
		return err
	}

	device, _, err := newDevice(cfg)
	if err != nil {
		return err
	}

	resp, err := device.SendRaw(ctx, payload, true)
	if err != nil {
		return err
	}

	switch {
	case *rawOut:
		printRaw(resp)
	case len(resp) > 0:
		fmt.Println(strings.ToValidUTF8(string(resp), "�"))
	default:
		fmt.Println("No response")
	}
	return nil
}

func runCommand(ctx context.Context, cfg *config, command string, args []string) error {
	switch command {
	case "list-ports":
		return runListPorts(args)
	case "relay":
		return runRelay(ctx, cfg, args)
	case "all":
		return runAll(ctx, cfg, args)
	case "status":
		return runStatus(ctx, cfg, args)
	case "raw":
		return runRaw(ctx, cfg, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := runCommand(ctx, cfg, args[0], args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errReported):
		return 1
	case errors.Is(err, errUsage), errors.Is(err, usbrelay.ErrInvalidParameter):
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	default:
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
}
