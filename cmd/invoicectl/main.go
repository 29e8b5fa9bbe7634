package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/invoice-insights/cmd/invoicectl/cli"
)

func main() {
	_ = godotenv.Load()
	if err := cli.NewRootCommand(cli.DefaultOptions()).Execute(); err != nil {
		os.Exit(1)
	}
}
