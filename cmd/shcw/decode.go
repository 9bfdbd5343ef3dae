package main

import (
	"encoding/json"
	"fmt"

	"github.com/boogy/shc-warden/pkg/jws"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [card]",
	Short: "Decode a compact or shc:/ numeric health card",
	Long:  "Decodes a health card without verifying it and prints its protected header and (inflated) payload. Input can be a card, a file path, a URL, or piped via stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

type decodedCard struct {
	Kind      string          `json:"kind"`
	Header    json.RawMessage `json:"header"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Signature string          `json:"signature"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	input := ""
	if len(args) > 0 {
		input = args[0]
	}

	raw, err := readInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}

	in := jws.Detect(raw)
	token, err := jws.Parse(in)
	if err != nil {
		return fmt.Errorf("decoding card: %w", err)
	}

	headerJSON, err := jws.DecodeSegment(token.HeaderText())
	if err != nil {
		return fmt.Errorf("decoding header: %w", err)
	}
	payload := token.Payload()

	out := cmd.OutOrStdout()
	if jsonOutput {
		decoded := decodedCard{
			Kind:      in.Kind.String(),
			Header:    json.RawMessage(headerJSON),
			Signature: token.Signature(),
		}
		if json.Valid(payload) {
			decoded.Payload = json.RawMessage(payload)
		}
		return printJSON(out, decoded)
	}

	header := token.Header()
	printSection(out, "Header")
	printField(out, "alg", string(header.Algorithm))
	printField(out, "kid", header.KeyID)
	if header.Compression != "" {
		printField(out, "zip", string(header.Compression))
	}
	fmt.Fprintln(out)

	if card, err := token.HealthCard(); err == nil {
		printSection(out, "Health card")
		printField(out, "issuer", card.Issuer)
		printField(out, "issued", formatTime(card.IssueDate()))
		printField(out, "expires", formatTime(card.ExpiresDate()))
		fmt.Fprintln(out)
	}

	printSection(out, "Payload")
	fmt.Fprintln(out, indentJSON(string(payload), "  "))
	return nil
}
