/*
 * Copyright (C) 2026 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/ssb"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const timeoutFlag = "timeout"

// FlagSet contains flags relevant for the SSB engine
func FlagSet() *pflag.FlagSet {
	defs := ssb.DefaultConfig()
	flagSet := pflag.NewFlagSet("ssb", pflag.ContinueOnError)
	flagSet.Bool("ssb.offline", defs.Offline, "Don't connect to Scuttlebutt peers or pubs and don't start a local server. "+
		"A server that is already running is still used, but its behavior can't be controlled.")
	flagSet.String("ssb.node.hostname", defs.Node.Hostname, "Hostname of the Scuttlebutt server, also the interface a local server listens on.")
	flagSet.Int("ssb.node.port", defs.Node.Port, "Port of the Scuttlebutt server.")
	flagSet.String("ssb.node.storagedir", defs.Node.StorageDir, "Directory a local server stores its log and identity in. Defaults to the ssb directory in the datadir.")
	flagSet.Bool("ssb.node.websocket", defs.Node.Websocket, "Enable the websocket transport of a local server.")
	flagSet.Int("ssb.node.websocketport", defs.Node.WebsocketPort, "Port of the websocket transport, when enabled.")
	flagSet.Bool("ssb.node.discovery", defs.Node.Discovery, "Announce and discover peers on the local network (mDNS) when starting a local server. Never enabled in offline mode.")
	flagSet.Duration("ssb.node.starttimeout", defs.Node.StartTimeout, "Maximum time a local server may take to accept connections.")
	flagSet.Duration("ssb.probe.timeout", defs.Probe.Timeout, "Timeout of a single attempt to connect to the Scuttlebutt server.")
	flagSet.Duration("ssb.retry.delay", defs.Retry.Delay, "Initial delay between connection attempts, doubled after every attempt.")
	flagSet.Duration("ssb.retry.maxdelay", defs.Retry.MaxDelay, "Maximum delay between connection attempts.")
	flagSet.Duration("ssb.retry.maxjitter", defs.Retry.MaxJitter, "Maximum random delay added to the delay between connection attempts.")
	return flagSet
}

// Cmd contains sub-commands that use the Scuttlebutt server. A server is started when none is running,
// and stopped again when the command finishes.
func Cmd(system *core.System, engine *ssb.Engine) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssb",
		Short: "Scuttlebutt commands",
	}
	cmd.PersistentFlags().Duration(timeoutFlag, 30*time.Second, "Maximum time to wait for the Scuttlebutt server.")
	cmd.AddCommand(whoamiCommand(system, engine))
	cmd.AddCommand(publishCommand(system, engine))
	cmd.AddCommand(branchCommand(system, engine))
	return cmd
}

func whoamiCommand(system *core.System, engine *ssb.Engine) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Prints the feed ID of the Scuttlebutt server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConnection(cmd, system, engine, func(ctx context.Context, h ssb.Handle) error {
				id, err := h.Whoami(ctx)
				if err != nil {
					return err
				}
				cmd.Println(id)
				return nil
			})
		},
	}
}

func publishCommand(system *core.System, engine *ssb.Engine) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [content]",
		Short: "Publishes a message with the given JSON content (e.g. '{\"type\":\"post\",\"text\":\"hello\"}')",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := json.RawMessage(args[0])
			if !json.Valid(content) {
				return fmt.Errorf("content is not valid JSON: %s", args[0])
			}
			return withConnection(cmd, system, engine, func(ctx context.Context, h ssb.Handle) error {
				msg, err := h.Publish(ctx, content)
				if err != nil {
					return err
				}
				data, _ := json.MarshalIndent(msg, "", "  ")
				cmd.Println(string(data))
				return nil
			})
		},
	}
}

func branchCommand(system *core.System, engine *ssb.Engine) *cobra.Command {
	return &cobra.Command{
		Use:   "branch [root]",
		Short: "Prints the keys of the latest messages in the tangle with the given root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConnection(cmd, system, engine, func(ctx context.Context, h ssb.Handle) error {
				branch, err := h.Tangle().Branch(ctx, args[0])
				if err != nil {
					return err
				}
				for _, key := range branch {
					cmd.Println(key)
				}
				return nil
			})
		},
	}
}

// withConnection configures the system, starts the engine and invokes fn with the connection.
func withConnection(cmd *cobra.Command, system *core.System, engine *ssb.Engine, fn func(ctx context.Context, h ssb.Handle) error) error {
	timeout, err := cmd.Flags().GetDuration(timeoutFlag)
	if err != nil {
		return err
	}
	if err = system.Configure(); err != nil {
		return err
	}
	if err = engine.Start(); err != nil {
		return err
	}
	defer func() {
		_ = engine.Shutdown()
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	h, err := engine.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("unable to connect to Scuttlebutt server: %w", err)
	}
	return fn(ctx, h)
}
