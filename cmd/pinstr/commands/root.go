// Package commands wires the pinstr CLI.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/zeroxbob/pinstr/internal/bookmarks"
	"github.com/zeroxbob/pinstr/internal/client"
	"github.com/zeroxbob/pinstr/internal/relay"
	"github.com/zeroxbob/pinstr/internal/signer"
	"github.com/zeroxbob/pinstr/internal/store"
	"github.com/zeroxbob/pinstr/internal/vault"
)

type appCtx struct {
	log      *zap.Logger
	store    *store.File
	pool     *relay.Pool
	client   *client.Client
	vault    *vault.Manager
	selector *signer.Selector
	books    *bookmarks.Service
}

var (
	home    string
	verbose bool
	app     *appCtx
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "pinstr",
		Short:         "Bookmark client for the relay network, with a private vault",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".config", "pinstr")
			}

			var log *zap.Logger
			var err error
			if verbose {
				log, err = zap.NewDevelopment()
			} else {
				log, err = zap.NewProduction()
			}
			if err != nil {
				return err
			}

			st, err := store.OpenFile(filepath.Join(home, "pinstr.json"))
			if err != nil {
				return err
			}
			mgr, err := vault.NewManager(st, log)
			if err != nil {
				return err
			}
			pool := relay.NewPool(log)
			cl := client.New(pool, log)
			app = &appCtx{
				log:      log,
				store:    st,
				pool:     pool,
				client:   cl,
				vault:    mgr,
				selector: signer.NewSelector(st, st, nil),
				books:    bookmarks.NewService(cl, st, mgr, log),
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.pool.Close()
				_ = app.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.config/pinstr)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(vaultCmd(), relaysCmd(), keyCmd(), saveCmd(), listCmd())
	return root.Execute()
}

// readPassphrase prompts without echoing.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
