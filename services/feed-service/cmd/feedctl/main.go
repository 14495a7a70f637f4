package main

import (
	"os"

	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
