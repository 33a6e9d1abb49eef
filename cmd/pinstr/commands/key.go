package commands

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/cobra"

	"github.com/zeroxbob/pinstr/internal/store"
)

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the local signing key",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a local signing key and select the internal signer",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := btcec.NewPrivateKey()
			if err != nil {
				return err
			}
			if err := app.store.Set(store.KeyLocalSecret, priv.Serialize()); err != nil {
				return err
			}
			if err := app.store.SetSignerConfig(&store.SignerConfig{Mode: store.SignerInternal}); err != nil {
				return err
			}
			return printIdentity()
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <hex>",
		Short: "Import a 32-byte hex signing key and select the internal signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := hex.DecodeString(args[0])
			if err != nil || len(secret) != 32 {
				return fmt.Errorf("validation: key must be 64 hex chars")
			}
			if err := app.store.Set(store.KeyLocalSecret, secret); err != nil {
				return err
			}
			if err := app.store.SetSignerConfig(&store.SignerConfig{Mode: store.SignerInternal}); err != nil {
				return err
			}
			return printIdentity()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the configured public identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printIdentity()
		},
	}

	cmd.AddCommand(generate, importCmd, show)
	return cmd
}

func printIdentity() error {
	ctx := context.Background()
	sg, err := app.selector.Current(ctx)
	if err != nil {
		return err
	}
	pub, err := sg.PublicKey(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Public identity: %s\n", pub)
	return nil
}
