package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benbc/recovery"
)

var runStage string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline stages",
	Long: `Run the pipeline stages in order: classify (individual rules),
hash (perceptual hashing, resumable), group (similarity clustering),
group-reject (group rules + path aggregation). Use --stage to run a
single stage.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		pl := recovery.NewPipeline(cfg, db)
		ctx := cmd.Context()

		switch runStage {
		case "all":
			return pl.Run(ctx)
		case "classify":
			_, err = pl.RunClassify(ctx)
		case "hash":
			_, err = pl.RunHash(ctx)
		case "group":
			_, err = pl.RunGroup(ctx)
		case "group-reject":
			_, err = pl.RunGroupReject(ctx)
		default:
			return fmt.Errorf("unknown stage %q (want all, classify, hash, group, group-reject)", runStage)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runStage, "stage", "all", "stage to run")
}
