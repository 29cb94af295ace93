package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegate/internal/faceauth"
	"github.com/kozaktomas/facegate/internal/imaging"
)

var verifyCmd = &cobra.Command{
	Use:   "verify --employee ID <image>",
	Short: "Verify a local image against an employee's enrolled faces",
	Long: `Verify a local image against the faces enrolled for an employee and
print the result as JSON, in the same shape as POST /verify_face.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("employee", "", "Employee identifier (required)")
	verifyCmd.Flags().Float64("tolerance", 0, "Override the match tolerance of the configured engine")
	_ = verifyCmd.MarkFlagRequired("employee")
}

// verifier is the part of faceauth.Service used by the verify command.
type verifier interface {
	Verify(ctx context.Context, req faceauth.VerifyRequest) (*faceauth.VerifyResult, error)
}

// VerifyOutput mirrors the /verify_face response body.
type VerifyOutput struct {
	Match       bool     `json:"match"`
	EmployeeID  string   `json:"employee_id,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Distance    *float64 `json:"distance,omitempty"`
	MinDistance *float64 `json:"min_distance,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	employeeID := mustGetString(cmd, "employee")

	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if tol := mustGetFloat64(cmd, "tolerance"); tol > 0 {
		cfg.Face.SetEngineTolerance(tol)
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	engine, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	svc := faceauth.NewService(store, engine, serviceOptions(cfg, nil), log.Named("faceauth"))

	return verifyFile(ctx, cmd.OutOrStdout(), svc, employeeID, args[0])
}

// verifyFile verifies one image and writes the result as JSON to w.
func verifyFile(ctx context.Context, w io.Writer, svc verifier, employeeID, path string) error {
	payload, err := imaging.EncodeFileBase64(path, false)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	res, err := svc.Verify(ctx, faceauth.VerifyRequest{EmployeeID: employeeID, ImageBase64: payload})
	if err != nil {
		if errors.Is(err, faceauth.ErrImageDecode) {
			return fmt.Errorf("%s is not a supported image: %w", path, err)
		}
		return fmt.Errorf("verifying %s: %w", path, err)
	}

	return outputJSON(w, VerifyOutput{
		Match:       res.Match,
		EmployeeID:  res.EmployeeID,
		Reason:      res.Reason,
		Distance:    res.Distance,
		MinDistance: res.MinDistance,
	})
}
