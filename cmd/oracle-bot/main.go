package main

import (
	"os"

	"github.com/ducminhle1904/crypto-oracle-bot/cmd/oracle-bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
