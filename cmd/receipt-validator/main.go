package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/assetauction/auctionapi"
	"github.com/cloudx-io/assetauction/validation"
)

// Exit codes.
const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

// plainTextHandler is a slog handler that writes bare messages without
// timestamps or levels, for CLI output.
type plainTextHandler struct {
	w io.Writer
}

func (*plainTextHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *plainTextHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintln(h.w, r.Message)
	return err
}

func (h *plainTextHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *plainTextHandler) WithGroup(_ string) slog.Handler {
	return h
}

type options struct {
	receiptPath   string
	publicKeyPath string
	format        string
}

func newRootCmd(stdout io.Writer, exitCode *int) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "receipt-validator --receipt <path> --public-key <pem>",
		Short: "Verifies a signed auction settlement receipt",
		Long: `Verifies a signed auction settlement receipt.

The receipt file holds either a receipt JSON response (claim or receipt) or the
bare base64 receipt. Exit codes: 0 validation passed, 1 validation failed,
2 invalid input or runtime error.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			logger := slog.New(&plainTextHandler{w: stdout})
			valid, err := run(logger, opts)
			if err != nil {
				*exitCode = exitError
				return err
			}
			if !valid {
				*exitCode = exitInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.receiptPath, "receipt", "", "Path to the receipt JSON or base64 file (required)")
	cmd.Flags().StringVar(&opts.publicKeyPath, "public-key", "", "Path to the signer's public key PEM file (required)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("receipt")
	_ = cmd.MarkFlagRequired("public-key")
	return cmd
}

func run(logger *slog.Logger, opts *options) (bool, error) {
	if opts.format != "text" && opts.format != "json" {
		return false, fmt.Errorf("unknown format %q", opts.format)
	}
	receiptB64, err := readReceipt(opts.receiptPath)
	if err != nil {
		return false, fmt.Errorf("reading receipt: %w", err)
	}
	publicKey, err := os.ReadFile(opts.publicKeyPath)
	if err != nil {
		return false, fmt.Errorf("reading public key: %w", err)
	}

	result, err := validation.VerifyReceipt(receiptB64, string(publicKey))
	if err != nil {
		return false, fmt.Errorf("validation error: %w", err)
	}

	if opts.format == "json" {
		if err := outputJSON(logger, result); err != nil {
			return false, fmt.Errorf("marshaling JSON: %w", err)
		}
	} else {
		outputText(logger, result)
	}
	return result.IsValid(), nil
}

// readReceipt accepts a claim or receipt JSON response, or a bare base64 receipt.
func readReceipt(path string) (auctionapi.ReceiptCOSEBase64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		if trimmed == "" {
			return "", fmt.Errorf("receipt file is empty")
		}
		return auctionapi.ReceiptCOSEBase64(trimmed), nil
	}

	var resp struct {
		ReceiptCOSEBase64 auctionapi.ReceiptCOSEBase64 `json:"receipt_cose_base64"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse JSON: %w", err)
	}
	if resp.ReceiptCOSEBase64 == "" {
		return "", fmt.Errorf("missing receipt_cose_base64 field")
	}
	return resp.ReceiptCOSEBase64, nil
}

func outputText(logger *slog.Logger, result *validation.ReceiptValidationResult) {
	logger.Info("Settlement Receipt Validator")
	logger.Info("============================")
	logger.Info("")

	if p := result.Payload; p != nil {
		logger.Info("Receipt:")
		logger.Info(fmt.Sprintf("  Auction:         %s", p.AuctionID))
		logger.Info(fmt.Sprintf("  Asset:           %s #%d", p.AssetContract, p.AssetID))
		logger.Info(fmt.Sprintf("  Recipient:       %s", p.Recipient))
		logger.Info(fmt.Sprintf("  Gross:           %s", p.Settlement.Gross))
		logger.Info(fmt.Sprintf("  Fee:             %s", p.Settlement.Fee))
		logger.Info(fmt.Sprintf("  Royalty:         %s", p.Settlement.Royalty))
		logger.Info(fmt.Sprintf("  Seller proceeds: %s", p.Settlement.SellerProceeds))
		logger.Info("")
	}

	logger.Info("Details:")
	for _, d := range result.ValidationDetails {
		logger.Info("  " + d)
	}

	logger.Info("")
	logger.Info("Summary:")
	logger.Info(fmt.Sprintf("  Signature Valid:  %v", result.SignatureValid))
	logger.Info(fmt.Sprintf("  Public Key Match: %v", result.PublicKeyMatch))
	logger.Info(fmt.Sprintf("  Hash Valid:       %v", result.HashValid))
	logger.Info(fmt.Sprintf("  Split Balanced:   %v", result.SplitBalanced))

	logger.Info("")
	logger.Info("============================")
	if result.IsValid() {
		logger.Info("VALIDATION: ✓ PASSED")
	} else {
		logger.Info("VALIDATION: ✗ FAILED")
	}
}

func outputJSON(logger *slog.Logger, result *validation.ReceiptValidationResult) error {
	output := map[string]any{
		"valid":            result.IsValid(),
		"signature_valid":  result.SignatureValid,
		"public_key_match": result.PublicKeyMatch,
		"hash_valid":       result.HashValid,
		"split_balanced":   result.SplitBalanced,
		"details":          result.ValidationDetails,
		"receipt":          result.Payload,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	logger.Info(string(data))
	return nil
}

func main() {
	exitCode := exitValid
	if err := newRootCmd(os.Stdout, &exitCode).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if exitCode == exitValid {
			exitCode = exitError
		}
	}
	os.Exit(exitCode)
}
