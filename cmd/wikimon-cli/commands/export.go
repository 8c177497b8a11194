package commands

import (
	"digimon-scraper/internal/dataset"
	"digimon-scraper/internal/db"
	"digimon-scraper/lib/util/serviceutil"
	"log/slog"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	dialect string
	dsn     string
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.dialect, "dialect", "", "The database to export to, sqlite or postgres.")
	exportCmd.Flags().StringVar(&exportFlags.dsn, "dsn", "", "The sqlite file or postgres connection string.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--dialect sqlite|postgres] [--dsn <dsn>]",
	Short: "Exports the written dataset into a relational database.",
	Run: func(cmd *cobra.Command, args []string) {
		dialectName := cfg.Export.Dialect
		if exportFlags.dialect != "" {
			dialectName = exportFlags.dialect
		}
		dsn := cfg.Export.Dsn
		if exportFlags.dsn != "" {
			dsn = exportFlags.dsn
		}
		dialect, err := db.ParseDialect(dialectName)
		if err != nil {
			serviceutil.Fatal("invalid dialect", err)
		}

		ds, err := dataset.Read(datasetPath())
		if err != nil {
			serviceutil.Fatal("failed to read dataset", err)
		}

		database, err := db.Open(cmd.Context(), dialect, dsn)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		err = db.NewExporter(database, dialect).Export(cmd.Context(), ds)
		if err != nil {
			serviceutil.Fatal("failed to export", err)
		}
		slog.Info("exported dataset", "dialect", dialect, "digimons", len(ds.Digimons))
	},
}
