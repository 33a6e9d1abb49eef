package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeroxbob/pinstr/internal/model"
)

func relaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relays",
		Short: "Manage the relay list",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show configured relays",
		RunE: func(cmd *cobra.Command, args []string) error {
			relays, err := app.store.RelayList()
			if err != nil {
				return err
			}
			if len(relays) == 0 {
				fmt.Println("No relays configured.")
				return nil
			}
			for _, r := range relays {
				fmt.Printf("%s  read=%t write=%t\n", r.URL, r.Read, r.Write)
			}
			return nil
		},
	}

	var read, write bool
	add := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := model.NormalizeRelayURL(args[0])
			if err != nil {
				return err
			}
			relays, err := app.store.RelayList()
			if err != nil {
				return err
			}
			for _, r := range relays {
				if r.URL == u {
					return fmt.Errorf("relay %s already configured", u)
				}
			}
			relays = append(relays, model.RelayConfig{URL: u, Read: read, Write: write})
			if err := app.store.SetRelayList(relays); err != nil {
				return err
			}
			fmt.Printf("Added %s\n", u)
			return nil
		},
	}
	add.Flags().BoolVar(&read, "read", true, "use this relay for reads")
	add.Flags().BoolVar(&write, "write", true, "use this relay for writes")

	remove := &cobra.Command{
		Use:   "remove <url>",
		Short: "Remove a relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := model.NormalizeRelayURL(args[0])
			if err != nil {
				return err
			}
			relays, err := app.store.RelayList()
			if err != nil {
				return err
			}
			kept := relays[:0]
			for _, r := range relays {
				if r.URL != u {
					kept = append(kept, r)
				}
			}
			if len(kept) == len(relays) {
				return fmt.Errorf("relay %s not configured", u)
			}
			if err := app.store.SetRelayList(kept); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", u)
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
