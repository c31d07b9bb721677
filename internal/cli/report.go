package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/store"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report <job-id>",
	Short: "Export a scan job's full state as a JSON report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job ID: %w", err)
		}
		if reportOutput == "" {
			return fmt.Errorf("--output is required")
		}

		gw, err := openGateway(cmd.Context(), cfg.Driver, cfg.DSN)
		if err != nil {
			return err
		}
		defer gw.Close()

		job, err := gw.GetJob(cmd.Context(), jobID)
		if err != nil {
			return err
		}
		if job == nil {
			notFound, err := json.Marshal(struct {
				JobID string `json:"job_id"`
				Error string `json:"error"`
			}{JobID: jobID.String(), Error: "Job not found"})
			if err != nil {
				return fmt.Errorf("serializing not-found report: %w", err)
			}
			if err := os.WriteFile(reportOutput, notFound, 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			return fmt.Errorf("job %s not found in storage", jobID)
		}

		data, err := store.MarshalJob(job)
		if err != nil {
			return fmt.Errorf("serializing report: %w", err)
		}
		if err := os.WriteFile(reportOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}

		fmt.Printf("Report exported successfully: %s\n", reportOutput)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "output file path (required)")
	_ = reportCmd.MarkFlagRequired("output")
}
