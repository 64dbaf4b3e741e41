package main

import (
	"fmt"

	"github.com/spf13/cobra"

	bookchat "github.com/djsadd/bookchat-go"
)

func newContextCmd(opts *globalOptions) *cobra.Command {
	var req bookchat.ContextRequest

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Stream generated reading context for a book page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := req.Validate(); err != nil {
				return err
			}

			client, err := opts.newClient()
			if err != nil {
				return err
			}

			var col bookchat.Collector
			out := cmd.OutOrStdout()
			err = client.StreamTo(cmd.Context(), client.ContextStreamRequest(req), bookchat.HandlerFuncs{
				Text: func(delta string) {
					col.OnText(delta)
					fmt.Fprint(out, delta)
				},
				DownloadURL: col.OnDownloadURL,
			})
			fmt.Fprintln(out)
			if url := col.DownloadURL(); url != "" {
				fmt.Fprintf(out, "Download: %s\n", url)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&req.BookID, "book", "", "book id (id_book)")
	cmd.Flags().StringVar(&req.Title, "title", "", "book title, used when no id is known")
	cmd.Flags().StringVar(&req.Page, "page", "", "page number")
	cmd.Flags().StringVar(&req.Query, "query", "", "question the context should address")
	return cmd
}
