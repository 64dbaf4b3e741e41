package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	bookchat "github.com/djsadd/bookchat-go"
)

func newCardsCmd(opts *globalOptions) *cobra.Command {
	var recommend bool

	cmd := &cobra.Command{
		Use:   "cards [query]",
		Short: "Search the catalogue for book cards",
		Long: `Search the catalogue for book cards matching a query.
With --recommend the arguments are topics instead, and without arguments
the backend picks topics from the user's profile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}

			var resp *bookchat.CardResponse
			if recommend {
				resp, err = client.Recommendations(cmd.Context(), args)
			} else {
				resp, err = client.ChatCards(cmd.Context(), strings.Join(args, " "))
			}
			if err != nil {
				return err
			}

			printCards(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&recommend, "recommend", false, "ask for recommendations by topic")
	return cmd
}

func printCards(w io.Writer, resp *bookchat.CardResponse) {
	if resp.Reply != "" {
		fmt.Fprintln(w, resp.Reply)
	}
	for _, origin := range []bookchat.CardOrigin{bookchat.OriginBookSearch, bookchat.OriginVectorSearch, bookchat.OriginLegacy} {
		cards := resp.ByOrigin(origin)
		if len(cards) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n[%s]\n", origin)
		for _, c := range cards {
			fmt.Fprintf(w, "- %s", c.Title)
			if c.Author != "" {
				fmt.Fprintf(w, " / %s", c.Author)
			}
			if c.Year != "" {
				fmt.Fprintf(w, " (%s)", c.Year)
			}
			if c.Page != "" {
				fmt.Fprintf(w, ", p. %s", c.Page)
			}
			fmt.Fprintln(w)
			if c.TextSnippet != "" {
				fmt.Fprintf(w, "    %s\n", c.TextSnippet)
			}
		}
	}
}

func newDisciplinesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disciplines",
		Short: "List the user's educational disciplines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}
			disciplines, err := client.Disciplines(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range disciplines {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}
