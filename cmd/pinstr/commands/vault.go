package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the passphrase-derived private vault",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a vault derived from your identity and a passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerIdentifier()
			if err != nil {
				return err
			}
			pass, err := readPassphrase("Passphrase (min 12 chars): ")
			if err != nil {
				return err
			}
			if err := app.vault.Create(pass, owner); err != nil {
				return err
			}
			pub, _ := app.vault.PublicIdentifier()
			fmt.Printf("Vault created and unlocked.\nVault identity: %s\n", pub)
			return nil
		},
	}

	unlock := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the vault for this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerIdentifier()
			if err != nil {
				return err
			}
			pass, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			if err := app.vault.Unlock(pass, owner); err != nil {
				return err
			}
			fmt.Println("Vault unlocked.")
			return nil
		},
	}

	lock := &cobra.Command{
		Use:   "lock",
		Short: "Wipe vault keys from memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.vault.Lock()
			fmt.Println("Vault locked.")
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Destroy the vault (existing vault content becomes unrecoverable)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.vault.Reset(); err != nil {
				return err
			}
			fmt.Println("Vault reset.")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show vault state",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("State: %s\n", app.vault.State())
			if pub, ok := app.vault.PublicIdentifier(); ok {
				fmt.Printf("Vault identity: %s\n", pub)
			}
			return nil
		},
	}

	cmd.AddCommand(create, unlock, lock, reset, status)
	return cmd
}

// ownerIdentifier is the public key of the configured signer; the vault salt
// is derived from it so the vault can be recreated on any device.
func ownerIdentifier() (string, error) {
	ctx := context.Background()
	sg, err := app.selector.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("a signer must be configured first (pinstr key generate): %w", err)
	}
	return sg.PublicKey(ctx)
}
