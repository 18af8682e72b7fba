package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benbc/recovery"
	"github.com/benbc/recovery/store"
)

var importHashesCmd = &cobra.Command{
	Use:   "import-hashes <prior-db>",
	Short: "Bulk-load hashes computed by a previous pipeline run",
	Long: `Copy perceptual hashes from a prior pipeline database into the
current one, keyed by photo checksum, so the hash stage does not
re-decode files it has already seen.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		prior, err := store.Open(args[0])
		if err != nil {
			return err
		}
		defer prior.Close()

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		photos, err := prior.Photos(ctx)
		if err != nil {
			return err
		}
		hashes := make(map[string]recovery.HashPair)
		for _, p := range photos {
			if p.HasHashes {
				hashes[p.ID] = recovery.HashPair{Primary: p.PrimaryHash, Secondary: p.SecondaryHash}
			}
		}

		pl := recovery.NewPipeline(cfg, db)
		n, err := pl.ImportHashes(ctx, hashes)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d hash pairs from %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importHashesCmd)
}
