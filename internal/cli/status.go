package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Print the current status of a scan job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job ID: %w", err)
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
			return fmt.Errorf("job %s not found", jobID)
		}
		return printJobTable(job)
	},
}

func printJobTable(job *model.Job) error {
	fmt.Printf("Scan Status: %s [%s]\n", job.Target, job.Status())

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TASK ID\tTOOL\tSTATUS\tINFO")
	for _, t := range job.Tasks() {
		info := ""
		if errMsg := t.Error(); errMsg != "" {
			if len(errMsg) > 40 {
				errMsg = errMsg[:40] + "..."
			}
			info = errMsg
		} else if t.Result() != nil {
			info = "done"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID.String()[:8], t.ToolName, t.Status(), info)
	}
	return w.Flush()
}
