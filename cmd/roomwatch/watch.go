package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/pscheid92/roomqa/internal/reconcile"
	"github.com/pscheid92/roomqa/internal/roomclient"
	"github.com/spf13/cobra"
)

const clearScreen = "\033[H\033[2J"

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var noClear bool

	cmd := &cobra.Command{
		Use:   "watch <room-id>",
		Short: "Follow a room live, most reacted questions first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watch(ctx, client, args[0], cmd.OutOrStdout(), !noClear)
		},
	}
	cmd.Flags().BoolVar(&noClear, "no-clear", false, "append each view instead of redrawing the screen")
	return cmd
}

func watch(ctx context.Context, client *roomclient.Client, roomID string, out io.Writer, redraw bool) error {
	room, err := client.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	session := roomclient.NewSession(client)
	rec, err := session.Join(ctx, roomID)
	if err != nil {
		return err
	}
	defer session.Close()

	var mu sync.Mutex
	rec.OnChange(func(entries []reconcile.Entry) {
		mu.Lock()
		defer mu.Unlock()
		if redraw {
			fmt.Fprint(out, clearScreen)
		}
		fmt.Fprintf(out, "%s (%s)\n\n", room.Theme, room.ID)
		_ = renderView(out, entries)
		fmt.Fprintln(out)
	})

	return session.Run(ctx)
}

// renderView prints one line per message in view order. Votes cast by this
// client are starred.
func renderView(w io.Writer, entries []reconcile.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VOTES\tANSWERED\tID\tQUESTION")
	for _, e := range entries {
		votes := fmt.Sprint(e.ReactionCount)
		if e.Voted {
			votes += "*"
		}
		answered := ""
		if e.Answered {
			answered = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", votes, answered, e.ID, e.Message.Message)
	}
	return tw.Flush()
}
