package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/boogy/shc-warden/pkg/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	noColor    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "shcw",
	Short:   "Decode, encode and verify SMART Health Cards",
	Long:    "A command line companion to SHC Warden. Decodes compact and shc:/ numeric health cards, re-encodes them for QR codes and verifies their ES256 signatures against trust directories or the issuer's published keys.",
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

const maxInputSize = 10 << 20

var inputClient = &http.Client{Timeout: 15 * time.Second}

// readInput resolves a card argument: "-" or empty reads stdin, an http(s)
// URL is downloaded, an existing path is read, anything else is the card.
func readInput(stdin io.Reader, input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "-" || input == "" {
		if f, ok := stdin.(*os.File); ok {
			stat, err := f.Stat()
			if err != nil {
				return "", fmt.Errorf("cannot read stdin: %w", err)
			}
			if stat.Mode()&os.ModeCharDevice != 0 {
				return "", fmt.Errorf("no input provided (use a card, a file path, a URL, or pipe to stdin)")
			}
		}
		b, err := io.ReadAll(io.LimitReader(stdin, maxInputSize))
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	if strings.HasPrefix(input, "https://") || strings.HasPrefix(input, "http://") {
		return fetchInput(input)
	}

	if _, err := os.Stat(input); err == nil {
		b, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("reading file %s: %w", input, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	return input, nil
}

func fetchInput(url string) (string, error) {
	resp, err := inputClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxInputSize))
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", url, err)
	}
	return strings.TrimSpace(string(b)), nil
}
