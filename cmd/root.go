package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "brieflab",
		Short:         "Turn articles, documents and topics into illustrated reports",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(
		serveCMD(&cfgPath),
		reportCMD(&cfgPath, "analyze"),
		reportCMD(&cfgPath, "summarize"),
		reportCMD(&cfgPath, "linkedin"),
		learnCMD(&cfgPath),
		migrateCMD(&cfgPath),
		tokenCMD(&cfgPath),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
