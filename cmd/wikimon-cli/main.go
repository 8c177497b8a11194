package main

import (
	"digimon-scraper/cmd/wikimon-cli/commands"
	"digimon-scraper/lib/util/serviceutil"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err.Error())
	}

	commands.ExecuteContext(serviceutil.SignalContext())
}
