package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRoomsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			rooms, err := client.ListRooms(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTHEME")
			for _, r := range rooms {
				fmt.Fprintf(tw, "%s\t%s\n", r.ID, r.Theme)
			}
			return tw.Flush()
		},
	}
}

func newCreateRoomCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create-room <theme>",
		Short: "Create a room and print its ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			id, err := client.CreateRoom(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newAskCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <room-id> <question>",
		Short: "Post a question and print its ID",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			id, err := client.CreateMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// newVoteCmd builds "vote" when up is true and "unvote" otherwise.
func newVoteCmd(flags *globalFlags, up bool) *cobra.Command {
	use, short := "vote", "Add a reaction to a question"
	if !up {
		use, short = "unvote", "Remove a reaction from a question"
	}

	return &cobra.Command{
		Use:   use + " <room-id> <message-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}

			react := client.React
			if !up {
				react = client.Unreact
			}
			count, err := react(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", count)
			return nil
		},
	}
}

func newAnswerCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <room-id> <message-id>",
		Short: "Mark a question as answered",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			return client.MarkAnswered(cmd.Context(), args[0], args[1])
		},
	}
}
