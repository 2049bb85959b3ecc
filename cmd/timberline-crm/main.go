package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "timberline-crm",
	Short: "Timberline CRM - contractor back office API",
	Long:  `Back-office API for a home improvement contractor: lead intake, pipeline, clients, deals and a transactional activity history.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
