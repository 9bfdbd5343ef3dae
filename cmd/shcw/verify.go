package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/boogy/shc-warden/pkg/config"
	"github.com/boogy/shc-warden/pkg/handler"
	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/boogy/shc-warden/pkg/trust"
	"github.com/boogy/shc-warden/pkg/utils"
	"github.com/boogy/shc-warden/pkg/verifier"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	cardSetExtension  = ".smart-health-card"
	maxConcurrentRuns = 4
)

var errVerificationFailed = errors.New("one or more cards failed verification")

var (
	verifyImage       string
	verifyDirectories []string
	verifyTimeout     time.Duration
	verifyNoSchema    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [card|file]",
	Short: "Verify the signature of one or more health cards",
	Long: `Verifies health card signatures. Keys are resolved from the given trust
directories first and fetched from the issuer's /.well-known/jwks.json otherwise.

Input can be a compact or shc:/ card, a file path, a URL, or stdin. A
.smart-health-card file (or any JSON document with a verifiableCredential
array) verifies every card it contains. Use --image to scan a QR code instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyImage, "image", "", "Read the card from a QR code image (PNG or JPEG)")
	verifyCmd.Flags().StringArrayVarP(&verifyDirectories, "directory", "d", nil, "Trust directory source: file path, https:// URL or s3://bucket/key (repeatable)")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", verifier.DefaultFetchTimeout, "Timeout for fetching an issuer's key set")
	verifyCmd.Flags().BoolVar(&verifyNoSchema, "no-schema-check", false, "Skip JSON schema validation of trust directories")
	rootCmd.AddCommand(verifyCmd)
}

// verifyOutcome is the per-card report.
type verifyOutcome struct {
	Index      int           `json:"index"`
	Valid      bool          `json:"valid"`
	Path       verifier.Path `json:"path,omitempty"`
	Issuer     string        `json:"issuer,omitempty"`
	IssuerName string        `json:"issuerName,omitempty"`
	KeyID      string        `json:"kid,omitempty"`
	Trusted    bool          `json:"trusted"`
	IssuedAt   *time.Time    `json:"issuedAt,omitempty"`
	ExpiresAt  *time.Time    `json:"expiresAt,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	tokens, err := collectTokens(cmd, args)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no health cards found in input")
	}

	cfg := &config.Config{
		FetchTimeout:              verifyTimeout,
		TrustDirectories:          verifyDirectories,
		TrustDirectorySchemaCheck: !verifyNoSchema,
		MaxTokenLength:            handler.MaxTokenLength,
		Cache:                     &config.Cache{Type: "memory"},
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loadCtx, cancel := context.WithTimeout(ctx, handler.DirectoryLoadTimeout)
	_, store, err := handler.NewTrustStore(loadCtx, cfg)
	cancel()
	if err != nil {
		return err
	}

	outcomes := verifyTokens(ctx, verifier.NewVerifier(cfg, store), store, tokens)
	return report(cmd.OutOrStdout(), outcomes)
}

// collectTokens gathers the cards to verify from --image, a card set document
// or a single card.
func collectTokens(cmd *cobra.Command, args []string) ([]*jws.Token, error) {
	if verifyImage != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--image cannot be combined with a card argument")
		}
		text, err := scanQRFile(verifyImage)
		if err != nil {
			return nil, err
		}
		token, err := jws.Parse(jws.Detect(text))
		if err != nil {
			return nil, fmt.Errorf("parsing scanned card: %w", err)
		}
		return []*jws.Token{token}, nil
	}

	input := ""
	if len(args) > 0 {
		input = args[0]
	}

	raw, err := readInput(cmd.InOrStdin(), input)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(input), cardSetExtension) || strings.HasPrefix(raw, "{") {
		tokens, err := jws.ParseCardSet([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("parsing card set: %w", err)
		}
		return tokens, nil
	}

	token, err := jws.Parse(jws.Detect(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing card: %w", err)
	}
	return []*jws.Token{token}, nil
}

// verifyTokens checks every token concurrently. A failing card is reported in
// its outcome and does not stop the others.
func verifyTokens(ctx context.Context, v verifier.VerifierInterface, store *trust.Store, tokens []*jws.Token) []verifyOutcome {
	outcomes := make([]verifyOutcome, len(tokens))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRuns)

	for i, token := range tokens {
		g.Go(func() error {
			outcome := verifyOutcome{Index: i}
			if card, err := token.HealthCard(); err == nil {
				outcome.Issuer = card.Issuer
				outcome.IssuedAt = card.IssueDate()
				outcome.ExpiresAt = card.ExpiresDate()
			}

			result, err := v.Verify(ctx, token)
			if err != nil {
				outcome.Error = err.Error()
			} else {
				outcome.Valid = result.Valid
				outcome.Path = result.Path
				outcome.Issuer = result.Issuer
				outcome.KeyID = result.KeyID
				outcome.Trusted = result.Trusted
				outcome.IssuerName = store.IssuerName(result.Issuer)
				if outcome.IssuerName == "" {
					outcome.IssuerName = utils.HostOf(result.Issuer)
				}
			}

			outcomes[i] = outcome
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func report(w io.Writer, outcomes []verifyOutcome) error {
	failed := false
	for _, o := range outcomes {
		if !o.Valid {
			failed = true
		}
	}

	if jsonOutput {
		if err := printJSON(w, outcomes); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			printOutcome(w, o, len(outcomes) > 1)
		}
	}

	if failed {
		return errVerificationFailed
	}
	return nil
}

func printOutcome(w io.Writer, o verifyOutcome, numbered bool) {
	if numbered {
		printSection(w, fmt.Sprintf("Card %d", o.Index+1))
	}

	switch {
	case o.Error != "":
		errorColor.Fprintln(w, "  ERROR")
	case o.Valid:
		successColor.Fprintln(w, "  VALID")
	default:
		errorColor.Fprintln(w, "  INVALID SIGNATURE")
	}

	if o.Issuer != "" {
		printField(w, "issuer", o.Issuer)
	}
	if o.IssuerName != "" {
		printField(w, "name", o.IssuerName)
	}
	if o.Error == "" {
		trusted := "no"
		if o.Trusted {
			trusted = "yes"
		}
		printField(w, "trusted", trusted)
		printField(w, "kid", o.KeyID)
		printField(w, "resolved", string(o.Path))
	}
	if o.IssuedAt != nil {
		printField(w, "issued", formatTime(o.IssuedAt))
	}
	if o.ExpiresAt != nil {
		printField(w, "expires", formatTime(o.ExpiresAt))
	}
	if o.Error != "" {
		printField(w, "error", o.Error)
	}
	fmt.Fprintln(w)
}
