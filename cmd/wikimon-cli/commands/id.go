package commands

import (
	"digimon-scraper/internal/ident"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(idCmd)
}

var idCmd = &cobra.Command{
	Use:   "id <url|title>...",
	Short: "Prints the identifier derived from each page url or title.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, arg := range args {
			fmt.Printf("%s\t%s\n", arg, ident.Of(arg))
		}
	},
}
