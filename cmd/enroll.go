package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegate/internal/faceauth"
	"github.com/kozaktomas/facegate/internal/imaging"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll --employee ID <image>...",
	Short: "Enroll local images for an employee",
	Long: `Enroll one or more local images for an employee directly against the
configured store and face engine, without going through the HTTP service.
Each image must contain exactly one face.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("employee", "", "Employee identifier (required)")
	enrollCmd.Flags().Int("concurrency", 2, "Number of images processed in parallel")
	enrollCmd.Flags().Bool("json", false, "Output the summary as JSON")
	enrollCmd.Flags().Bool("no-progress", false, "Hide the progress bar")
	_ = enrollCmd.MarkFlagRequired("employee")
}

// enroller is the part of faceauth.Service used by the enroll command.
type enroller interface {
	Enroll(ctx context.Context, req faceauth.EnrollRequest) (*faceauth.EnrollResult, error)
}

// EnrollFailure is one image that could not be enrolled.
type EnrollFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// EnrollSummary is the outcome of an enroll run.
type EnrollSummary struct {
	RunID         string          `json:"run_id"`
	EmployeeID    string          `json:"employee_id"`
	Enrolled      int             `json:"enrolled"`
	Failed        int             `json:"failed"`
	EncodingCount int             `json:"num_encodings_for_user"`
	Failures      []EnrollFailure `json:"failures,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
	DurationHuman string          `json:"duration_human,omitempty"`
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	employeeID := mustGetString(cmd, "employee")
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")
	noProgress := mustGetBool(cmd, "no-progress")

	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

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

	var bar *progressbar.ProgressBar
	if !noProgress && !jsonOutput {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	summary := enrollFiles(ctx, svc, employeeID, args, concurrency, bar, log)

	if jsonOutput {
		summary.DurationHuman = ""
		if err := outputJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else {
		printEnrollSummary(cmd.OutOrStdout(), summary)
	}

	if summary.Enrolled == 0 {
		return errors.New("no image was enrolled")
	}
	return nil
}

// enrollFiles enrolls every path for employeeID with at most concurrency
// images in flight. bar may be nil.
func enrollFiles(
	ctx context.Context, svc enroller, employeeID string, paths []string,
	concurrency int, bar *progressbar.ProgressBar, log *zap.Logger,
) EnrollSummary {
	if concurrency < 1 {
		concurrency = 1
	}
	startTime := time.Now()
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID), zap.String("employee_id", employeeID))
	log.Info("enroll run started", zap.Int("images", len(paths)))

	var (
		mu       sync.Mutex
		failures []EnrollFailure
		maxCount int
		enrolled int
	)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			count, err := enrollFile(ctx, svc, employeeID, path)
			mu.Lock()
			if err != nil {
				failures = append(failures, EnrollFailure{Path: path, Error: err.Error()})
			} else {
				enrolled++
				maxCount = max(maxCount, count)
			}
			mu.Unlock()

			if bar != nil {
				bar.Add(1)
			}
		}(path)
	}

	wg.Wait()

	duration := time.Since(startTime)
	log.Info("enroll run finished",
		zap.Int("enrolled", enrolled),
		zap.Int("failed", len(failures)),
		zap.Duration("duration", duration))

	return EnrollSummary{
		RunID:         runID,
		EmployeeID:    employeeID,
		Enrolled:      enrolled,
		Failed:        len(failures),
		EncodingCount: maxCount,
		Failures:      failures,
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}
}

func enrollFile(ctx context.Context, svc enroller, employeeID, path string) (int, error) {
	payload, err := imaging.EncodeFileBase64(path, false)
	if err != nil {
		return 0, err
	}
	res, err := svc.Enroll(ctx, faceauth.EnrollRequest{EmployeeID: employeeID, ImageBase64: payload})
	if err != nil {
		return 0, err
	}
	return res.EncodingCount, nil
}

func printEnrollSummary(w io.Writer, s EnrollSummary) {
	fmt.Fprintf(w, "\nEnroll run %s for %s\n", s.RunID, s.EmployeeID)
	fmt.Fprintf(w, "  Enrolled:  %d\n", s.Enrolled)
	fmt.Fprintf(w, "  Failed:    %d\n", s.Failed)
	fmt.Fprintf(w, "  Encodings: %d\n", s.EncodingCount)
	fmt.Fprintf(w, "  Duration:  %s\n", s.DurationHuman)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  - %s: %s\n", f.Path, f.Error)
	}
}
