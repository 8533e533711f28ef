// Command roomwatch is a terminal client for a roomqa server. Besides the
// one-shot commands it can follow a room live, keeping a sorted view that
// survives reconnects.
package main

import (
	"fmt"
	"os"

	"github.com/pscheid92/roomqa/internal/platform/logging"
	"github.com/pscheid92/roomqa/internal/platform/version"
	"github.com/pscheid92/roomqa/internal/roomclient"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

type globalFlags struct {
	server   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "roomwatch",
		Short:         "Ask, vote on and follow questions in a roomqa room",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.InitLogger(flags.logLevel, "text")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	server := os.Getenv("ROOMQA_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVarP(&flags.server, "server", "s", server, "server base URL (or set ROOMQA_SERVER)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newRoomsCmd(flags),
		newCreateRoomCmd(flags),
		newAskCmd(flags),
		newVoteCmd(flags, true),
		newVoteCmd(flags, false),
		newAnswerCmd(flags),
		newWatchCmd(flags),
	)
	return root
}

func (f *globalFlags) client() (*roomclient.Client, error) {
	return roomclient.NewClient(f.server)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
