package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeroxbob/pinstr/internal/bookmarks"
)

func saveCmd() *cobra.Command {
	var title, description string
	var private bool
	cmd := &cobra.Command{
		Use:   "save <url>",
		Short: "Save a bookmark (publicly, or into the vault with --private)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			bm := bookmarks.Bookmark{Title: title, Description: description, URL: args[0]}

			var accepted bool
			var err error
			if private {
				_, accepted, err = app.books.SaveVault(ctx, bm)
			} else {
				sg, serr := app.selector.Current(ctx)
				if serr != nil {
					return serr
				}
				_, accepted, err = app.books.SavePublic(ctx, sg, bm)
			}
			if err != nil {
				return err
			}
			if !accepted {
				return fmt.Errorf("no relay accepted the bookmark")
			}
			fmt.Println("Saved.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "bookmark title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "bookmark description")
	cmd.Flags().BoolVar(&private, "private", false, "save into the vault identity")
	return cmd
}

func listCmd() *cobra.Command {
	var private bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookmarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var items []bookmarks.Bookmark
			var err error
			if private {
				items, err = app.books.ListVault(ctx)
			} else {
				sg, serr := app.selector.Current(ctx)
				if serr != nil {
					return serr
				}
				author, aerr := sg.PublicKey(ctx)
				if aerr != nil {
					return aerr
				}
				items, err = app.books.ListPublic(ctx, author)
			}
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No bookmarks.")
				return nil
			}
			for _, bm := range items {
				if bm.Title != "" {
					fmt.Printf("%s\n    %s\n", bm.Title, bm.URL)
				} else {
					fmt.Println(bm.URL)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "list vault bookmarks")
	return cmd
}
