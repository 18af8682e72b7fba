package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/benbc/recovery"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report counts per decision, rule, and stage",
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

		ctx := cmd.Context()
		pl := recovery.NewPipeline(cfg, db)
		s, err := pl.Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("photos:          %d\n", s.Photos)
		fmt.Printf("hashed:          %d\n", s.Hashed)
		fmt.Printf("rejected:        %d\n", s.Rejected)
		fmt.Printf("separated:       %d\n", s.Separated)
		fmt.Printf("grouped:         %d (in %d groups)\n", s.Grouped, s.Groups)
		fmt.Printf("group-rejected:  %d\n", s.GroupRejected)
		fmt.Printf("kept:            %d\n", s.Kept)

		printRules("individual decisions by rule:", s.ByRule)
		printRules("group rejections by rule:", s.GroupByRule)

		runs, err := db.Stages(ctx)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			fmt.Println("\nstage runs:")
			for _, r := range runs {
				fmt.Printf("  %-14s %s  records=%d  %s\n",
					r.Stage, r.CompletedAt.Format("2006-01-02 15:04:05"), r.RecordCount, r.Notes)
			}
		}
		return nil
	},
}

func printRules(header string, byRule map[string]int) {
	if len(byRule) == 0 {
		return
	}
	names := make([]string, 0, len(byRule))
	for name := range byRule {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if byRule[names[i]] != byRule[names[j]] {
			return byRule[names[i]] > byRule[names[j]]
		}
		return names[i] < names[j]
	})
	fmt.Println("\n" + header)
	for _, name := range names {
		fmt.Printf("  %-22s %d\n", name, byRule[name])
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
