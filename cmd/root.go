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
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/nuts-foundation/ssb-cooler/core"
	"github.com/nuts-foundation/ssb-cooler/core/status"
	"github.com/nuts-foundation/ssb-cooler/ssb"
	ssbCmd "github.com/nuts-foundation/ssb-cooler/ssb/cmd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var stdOutWriter io.Writer = os.Stdout

// shutdownTimeout is the maximum time the HTTP server gets to finish handling requests on shutdown.
const shutdownTimeout = 5 * time.Second

func createRootCommand(system *core.System) *cobra.Command {
	return &cobra.Command{
		Use:   "cooler",
		Short: "Cooler shares a single connection to a Scuttlebutt server, starting one when none is running.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return system.Load(cmd.Flags())
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}
}

func createPrintConfigCommand(system *core.System) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the current config",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("Current system config")
			cmd.Println(system.Config.PrintConfig())
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(core.BuildInfo())
		},
	}
}

func createServerCommand(system *core.System) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Starts the Cooler server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return startServer(cmd.Context(), system)
		},
	}
}

// startServer configures and starts all engines and serves their routes until ctx is cancelled.
func startServer(ctx context.Context, system *core.System) error {
	logrus.Info("Starting server with config:")
	logrus.Info(system.Config.PrintConfig())

	// check config on all engines
	if err := system.Configure(); err != nil {
		return err
	}

	// start engines
	if err := system.Start(); err != nil {
		return err
	}

	// start interfaces
	echoServer := system.EchoCreator()
	system.VisitEngines(func(engine core.Engine) {
		if m, ok := engine.(core.Routable); ok {
			m.Routes(echoServer)
		}
	})
	serverErr := make(chan error, 1)
	go func() {
		if err := echoServer.Start(system.Config.HTTP.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var result error
	select {
	case <-ctx.Done():
		logrus.Info("Shutting down...")
	case err := <-serverErr:
		result = fmt.Errorf("unable to start HTTP server (address=%s): %w", system.Config.HTTP.Address, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := echoServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Unable to shut down HTTP server")
	}
	if err := system.Shutdown(); err != nil {
		return errors.Join(result, err)
	}
	logrus.Info("Shutdown complete")
	return result
}

// CreateCommand creates the command with all subcommands to run the system.
func CreateCommand(system *core.System) *cobra.Command {
	command := createRootCommand(system)
	command.SetOut(stdOutWriter)
	command.PersistentFlags().AddFlagSet(core.FlagSet())
	command.PersistentFlags().AddFlagSet(ssbCmd.FlagSet())
	command.AddCommand(createServerCommand(system))
	command.AddCommand(createPrintConfigCommand(system))
	command.AddCommand(createVersionCommand())
	system.VisitEngines(func(engine core.Engine) {
		if ssbEngine, ok := engine.(*ssb.Engine); ok {
			command.AddCommand(ssbCmd.Cmd(system, ssbEngine))
		}
	})
	return command
}

// CreateSystem creates the system and registers all default engines.
func CreateSystem() *core.System {
	system := core.NewSystem()

	// Register engines
	// without dependencies
	system.RegisterEngine(status.NewStatusEngine(system))
	system.RegisterEngine(core.NewMetricsEngine())
	system.RegisterEngine(ssb.NewEngine())
	return system
}

// Execute executes the root command. It returns when the command finishes, for the server command when ctx is cancelled.
func Execute(ctx context.Context, system *core.System) error {
	command := CreateCommand(system)
	command.SilenceUsage = true
	return command.ExecuteContext(ctx)
}
