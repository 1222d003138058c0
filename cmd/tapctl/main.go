package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"example.com/me/rawtap/internal/admin"
	"example.com/me/rawtap/internal/sink"
	"github.com/spf13/cobra"
)

var (
	adminURL string
	since    uint64
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "tapctl",
	Short:         "rawtap debugger control",
	Long:          `tapctl watches and toggles the rawtap traffic debugger through its admin API`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream debugger lines",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show taps and their counters",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var enableCmd = &cobra.Command{
	Use:   "enable <prefix>",
	Short: "Enable the tap of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTap(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <prefix>",
	Short: "Disable the tap of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTap(cmd, args[0], false)
	},
}

var whitespaceCmd = &cobra.Command{
	Use:       "whitespace on|off",
	Short:     "Toggle logging of whitespace-only messages",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runWhitespace,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin", "http://127.0.0.1:9090", "Admin API base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	watchCmd.Flags().Uint64Var(&since, "since", 0, "Replay buffered lines with sequence above this value")

	rootCmd.AddCommand(watchCmd, listCmd, enableCmd, disableCmd, whitespaceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	return admin.NewClient(adminURL).Watch(ctx, since, func(e sink.Entry) {
		fmt.Fprintf(out, "%s %s\n", e.At.Format(time.RFC3339Nano), e.Line)
	})
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	status, err := admin.NewClient(adminURL).Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PREFIX\tENABLED\tSESSIONS\tRECV\tSENT\tBYTES IN\tBYTES OUT")
	for _, t := range status.Taps {
		fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%d\t%d\t%d\n",
			t.Prefix, t.Enabled, t.Sessions,
			t.Stats.MessagesReceived, t.Stats.MessagesSent,
			t.Stats.BytesReceived, t.Stats.BytesSent)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "whitespace: %t\n", status.Whitespace)
	return nil
}

func setTap(cmd *cobra.Command, prefix string, enabled bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	status, err := admin.NewClient(adminURL).SetTap(ctx, prefix, enabled)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: enabled=%t\n", status.Prefix, status.Enabled)
	return nil
}

func runWhitespace(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
	default:
		return fmt.Errorf("expected on or off, got %q", args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := admin.NewClient(adminURL).SetWhitespace(ctx, enabled); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "whitespace: %s\n", args[0])
	return nil
}
