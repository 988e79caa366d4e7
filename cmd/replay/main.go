package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬─┐┌─┐┌─┐┬  ┌─┐┬ ┬
  ├┬┘├┤ ├─┘│  ├─┤└┬┘
  ┴└─└─┘┴  ┴─┘┴ ┴ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "replay",
		Short: "Event replay tooling for server-rendered pages",
		Long: `Replay inspects and rewrites the event-replay markup contract in
server-rendered HTML.

Pages rendered with event replay enabled carry delegation markers
(jsaction), fragment markers (ngb), and an embedded state script per
application. This tool reports that state and strips it from markup
that no longer needs it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		inspectCmd(),
		stripCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
