// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/treerpc"
	"github.com/luxfi/treerpc/bridge"
)

var callTimeout = 10 * time.Second

var propsCmd = &cobra.Command{
	Use:   "props",
	Short: "Print the full serialized object tree",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *treerpc.BridgeClient, w io.Writer, _ []string) error {
		props, err := c.GetProps(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, props)
	}),
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the server version, service name and info",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *treerpc.BridgeClient, w io.Writer, _ []string) error {
		version, err := c.Version(ctx)
		if err != nil {
			return err
		}
		name, err := c.Name(ctx)
		if err != nil {
			return err
		}
		info, err := c.Info(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, map[string]any{"version": version, "name": name, "info": info})
	}),
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the value at a path",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *treerpc.BridgeClient, w io.Writer, args []string) error {
		v, err := c.GetParam(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(w, v)
	}),
}

var setCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Assign a value at a path",
	Long: `Assign a value at a path. The value is parsed as JSON when possible
and sent as a string otherwise, so "set mode CC" and "set voltage 3.3" both work.`,
	Args: cobra.ExactArgs(2),
	RunE: withClient(func(ctx context.Context, c *treerpc.BridgeClient, _ io.Writer, args []string) error {
		return c.SetParam(ctx, args[0], parseValue(args[1]))
	}),
}

var callCmd = &cobra.Command{
	Use:   "call <path> [args...]",
	Short: "Invoke a method",
	Args:  cobra.MinimumNArgs(1),
	RunE: withClient(func(ctx context.Context, c *treerpc.BridgeClient, w io.Writer, args []string) error {
		params := make([]any, 0, len(args)-1)
		for _, a := range args[1:] {
			params = append(params, parseValue(a))
		}
		v, err := c.RemoteCall(ctx, args[0], params...)
		if err != nil {
			return err
		}
		return printJSON(w, v)
	}),
}

var emitCmd = &cobra.Command{
	Use:   "emit <message>",
	Short: "Push a message to every connected client",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *treerpc.BridgeClient, _ io.Writer, args []string) error {
		return c.Emit(ctx, args[0])
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print change notifications until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Transport == treerpc.TransportJSON {
			return errors.New("the json transport does not push notifications")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		c, err := treerpc.Dial(ctx, cfg.Addr,
			treerpc.WithTransport(cfg.Transport),
			treerpc.WithNotifyHandler(func(method string, payload []byte) {
				printNotification(w, method, payload)
			}),
		)
		if err != nil {
			return err
		}
		defer c.Close()

		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", callTimeout, "per command call timeout")
	rootCmd.AddCommand(propsCmd, infoCmd, getCmd, setCmd, callCmd, emitCmd, watchCmd)
}

// withClient dials the configured server and runs fn with a bounded context.
func withClient(fn func(context.Context, *treerpc.BridgeClient, io.Writer, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()

		c, err := treerpc.Dial(ctx, cfg.Addr, treerpc.WithTransport(cfg.Transport))
		if err != nil {
			return err
		}
		bc := treerpc.NewBridgeClient(c)
		defer bc.Close()
		return fn(ctx, bc, cmd.OutOrStdout(), args)
	}
}

// parseValue reads s as JSON, falling back to the literal string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNotification(w io.Writer, method string, payload []byte) {
	var n bridge.Notification
	if err := json.Unmarshal(payload, &n); err == nil && n.Name != "" {
		v, _ := json.Marshal(n.Value)
		fmt.Fprintf(w, "%s = %s\n", n.Name, v)
		return
	}
	fmt.Fprintf(w, "%s %s\n", method, strings.TrimSpace(string(payload)))
}
