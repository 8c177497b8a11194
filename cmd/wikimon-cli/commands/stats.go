package commands

import (
	"digimon-scraper/internal/dataset"
	"digimon-scraper/internal/digimon"
	"digimon-scraper/lib/util/serviceutil"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

type stageStats struct {
	listed       int
	records      int
	evolvesFrom  int
	evolvesTo    int
	missingImage int
}

func datasetPath() string {
	return filepath.Join(cfg.OutDir, cfg.OutName+".json")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints per stage counts of the written dataset.",
	Run: func(cmd *cobra.Command, args []string) {
		ds, err := dataset.Read(datasetPath())
		if err != nil {
			serviceutil.Fatal("failed to read dataset", err)
		}

		stats := map[digimon.Stage]*stageStats{}
		for _, stage := range digimon.Stages() {
			stats[stage] = &stageStats{listed: len(*ds.Lists.Stage(stage))}
		}
		unstaged := 0
		for _, creature := range ds.Digimons {
			s, ok := stats[creature.Level]
			if !ok {
				unstaged++
				continue
			}
			s.records++
			s.evolvesFrom += len(creature.EvolvesFrom)
			s.evolvesTo += len(creature.EvolvesTo)
			if creature.Img == nil {
				s.missingImage++
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Stage", "Listed", "Records", "Evolves From", "Evolves To", "Missing Image"})
		total := stageStats{}
		for _, stage := range digimon.Stages() {
			s := stats[stage]
			t.AppendRow(table.Row{stage.String(), s.listed, s.records, s.evolvesFrom, s.evolvesTo, s.missingImage})
			total.records += s.records
			total.evolvesFrom += s.evolvesFrom
			total.evolvesTo += s.evolvesTo
			total.missingImage += s.missingImage
		}
		t.AppendFooter(table.Row{"All", len(ds.Lists.All), total.records, total.evolvesFrom, total.evolvesTo, total.missingImage})
		if unstaged > 0 {
			t.AppendFooter(table.Row{"Without stage", "", unstaged, "", "", ""})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
