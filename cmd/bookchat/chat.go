package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	bookchat "github.com/djsadd/bookchat-go"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <query>",
		Short: "Ask a question and stream the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chat := bookchat.ChatRequest{Query: strings.Join(args, " ")}
			if err := chat.Validate(); err != nil {
				return err
			}

			client, err := opts.newClient()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			req := client.ChatStreamRequest(chat)

			var downloadURL string
			err = client.StreamTo(cmd.Context(), req, bookchat.HandlerFuncs{
				Text:        func(delta string) { fmt.Fprint(out, delta) },
				DownloadURL: func(url string) { downloadURL = url },
			})
			fmt.Fprintln(out)
			if downloadURL != "" {
				fmt.Fprintf(out, "Download: %s\n", downloadURL)
			}
			return err
		},
	}
}
