package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/mock"
	"github.com/boogy/shc-warden/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	issueIss          string
	issueKid          string
	issueName         string
	issueExpires      time.Duration
	issueNumeric      bool
	issueJWKSOut      string
	issueDirectoryOut string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a throwaway test health card",
	Long: `Generates a fresh P-256 key and signs a minimal health card with it.

The matching key set and a one-entry trust directory can be written alongside
so the card can be verified offline:

  shcw issue --directory-out dir.json > card.txt
  shcw verify --directory dir.json card.txt`,
	Args: cobra.NoArgs,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVar(&issueIss, "iss", "https://example.org/issuer", "Issuer URL")
	issueCmd.Flags().StringVar(&issueKid, "kid", "", "Key ID (random when empty)")
	issueCmd.Flags().StringVar(&issueName, "name", "Test Issuer", "Issuer name in the written trust directory")
	issueCmd.Flags().DurationVar(&issueExpires, "expires", 0, "Expiry relative to now (no exp claim when 0)")
	issueCmd.Flags().BoolVar(&issueNumeric, "numeric", false, "Print the shc:/ numeric form")
	issueCmd.Flags().StringVar(&issueJWKSOut, "jwks-out", "", "Write the issuer key set to this file")
	issueCmd.Flags().StringVar(&issueDirectoryOut, "directory-out", "", "Write a trust directory for the issuer to this file")
	rootCmd.AddCommand(issueCmd)
}

func runIssue(cmd *cobra.Command, args []string) error {
	kid := issueKid
	if kid == "" {
		kid = uuid.NewString()
	}

	issuer, err := mock.NewIssuer(issueIss, kid)
	if err != nil {
		return err
	}

	now := time.Now()
	payload := issuer.Payload(float64(now.Unix()))
	if issueExpires > 0 {
		exp := float64(now.Add(issueExpires).Unix())
		payload.Expiry = &exp
	}

	card, err := issuer.Sign(payload)
	if err != nil {
		return fmt.Errorf("signing card: %w", err)
	}

	if issueNumeric {
		numeric, err := jws.EncodeNumeric(card)
		if err != nil {
			return err
		}
		card = numeric
	}

	if issueJWKSOut != "" {
		if err := writeJSONFile(issueJWKSOut, issuer.JWKS()); err != nil {
			return err
		}
	}

	if issueDirectoryOut != "" {
		directory := types.DirectorySnapshot{
			Directory:  "shcw issue",
			Time:       now.UTC().Format(time.RFC3339),
			IssuerInfo: []types.IssuerInfo{issuer.Info(issueName)},
		}
		if err := writeJSONFile(issueDirectoryOut, directory); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"card": card,
			"iss":  issuer.URL,
			"kid":  issuer.KeyID,
			"jwk":  issuer.JWK(),
		})
	}

	fmt.Fprintln(out, card)
	return nil
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
