// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"time"

	"github.com/siemens/hostprobe/dispatch"
	"github.com/siemens/hostprobe/probe"

	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

var (
	workerNumber    *uint
	port            *uint16
	connectTimeout  *time.Duration
	waitTimeout     *time.Duration
	cooldown        *time.Duration
	notifyLines     *uint
	rateLimit       *float64
	resolverAddr    *string
	netnsPath       *string
	containerName   *string
	live            *bool
	spinnerInterval *time.Duration
	colorMode       *string
	outputFormat    *string
	debug           *bool
)

func newRootCmd() (rootCmd *cobra.Command) {
	rootCmd = &cobra.Command{
		Use:   "hostprobe",
		Short: "hostprobe probes hosts for an echoed magic or an HTTP response header",
		Long: "hostprobe probes a single host, or all hosts read line by line from stdin,\n" +
			"with a bounded number of probes in flight, printing one result per host.",
		Version:      "0.9",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if *workerNumber > 100000 {
				return fmt.Errorf("--workers out of range [0..100000]")
			}
			if *port == 0 {
				return fmt.Errorf("--port must not be zero")
			}
			if *connectTimeout < 10*time.Millisecond {
				return fmt.Errorf("--connect-timeout must be at least 10ms")
			}
			if *waitTimeout < 10*time.Millisecond {
				return fmt.Errorf("--wait-timeout must be at least 10ms")
			}
			if *cooldown < 10*time.Millisecond {
				return fmt.Errorf("--cooldown must be at least 10ms")
			}
			if *spinnerInterval < 10*time.Millisecond {
				return fmt.Errorf("--spinner must be at least 10ms")
			}
			if *rateLimit < 0 {
				return fmt.Errorf("--rate must not be negative")
			}
			switch *colorMode {
			case "auto", "always", "never":
			default:
				return fmt.Errorf("--color must be one of auto, always, never")
			}
			switch *outputFormat {
			case "text", "json":
			default:
				return fmt.Errorf("--output must be one of text, json")
			}
			if *netnsPath != "" && *containerName != "" {
				return fmt.Errorf("--netns and --container are mutually exclusive")
			}
			if *debug {
				log.SetLevel(log.DebugLevel)
				log.Debugf("debug logging enabled")
			}
			return nil
		},
	}
	// Sets up the flags.
	pf := rootCmd.PersistentFlags()
	debug = pf.Bool(
		"debug", false, "enable debugging output")
	workerNumber = pf.Uint(
		"workers", dispatch.DefaultMaxOutstanding, "maximum number of probes in flight")
	port = pf.Uint16(
		"port", dispatch.DefaultPort, "port to probe")
	connectTimeout = pf.Duration(
		"connect-timeout", probe.DefaultConnectTimeout, "connect window")
	waitTimeout = pf.Duration(
		"wait-timeout", probe.DefaultResponseTimeout, "response window")
	cooldown = pf.Duration(
		"cooldown", dispatch.DefaultCooldown, "interval for checking the host list for more hosts")
	notifyLines = pf.Uint(
		"notify", dispatch.DefaultNotify, "report progress every this many hosts; 0 disables")
	rateLimit = pf.Float64(
		"rate", 0, "maximum new probes per second; 0 means unlimited")
	resolverAddr = pf.String(
		"resolver", "", "DNS resolver host:port to use instead of the system resolver")
	netnsPath = pf.String(
		"netns", "", "probe from inside the network namespace referenced by this path")
	containerName = pf.String(
		"container", "", "probe the containers on the networks attached to this Docker container, from its perspective")
	live = pf.Bool(
		"live", false, "show live progress instead of progress notices")
	spinnerInterval = pf.Duration(
		"spinner", 100*time.Millisecond, "spinner interval of live progress")
	colorMode = pf.String(
		"color", "auto", "colorize result kinds: auto, always, never")
	outputFormat = pf.String(
		"output", "text", "output format: text, json")

	rootCmd.AddCommand(newMagicCmd(), newHeaderCmd())
	return
}

func newMagicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "magic HEXMAGIC [host]",
		Short: "check that hosts echo a magic byte pattern",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := probe.ParseMagic(args[0])
			if err != nil {
				return err
			}
			return ProbeAndReport(cmd, probe.Magic(pattern), args[1:])
		},
	}
}

func newHeaderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header NAME [host]",
		Short: "get an HTTP response header from hosts",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return fmt.Errorf("header name must not be empty")
			}
			return ProbeAndReport(cmd, probe.Header(args[0]), args[1:])
		},
	}
}
