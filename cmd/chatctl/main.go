package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	apiFlag        string
	cookieFileFlag string
)

func defaultCookieFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".chatctl-session"
	}
	return filepath.Join(dir, "chatctl", "session.json")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "CLI client for the chat service REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:5000", "Chat service base URL")
	root.PersistentFlags().StringVar(&cookieFileFlag, "cookie-file", defaultCookieFile(), "Where the session cookie is kept between runs")
	addCommands(root)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
