package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/journeys/internal/export"
)

// writerDestination sends an export payload to an io.Writer such as stdout.
type writerDestination struct {
	w io.Writer
}

func (d writerDestination) String() string { return "stdout" }

func (d writerDestination) Write(_ context.Context, data []byte) error {
	_, err := d.w.Write(data)
	return err
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export journeys and their step graphs as JSONL",
	GroupID: "system",
	Long: `Writes a JSONL snapshot (a header line followed by journey, step and
step_child records) to stdout, a file, and/or the configured S3 bucket.
With --interval the export repeats until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		toS3, _ := cmd.Flags().GetBool("s3")
		interval, _ := cmd.Flags().GetDuration("interval")
		if !cmd.Flags().Changed("interval") {
			interval = deps.cfg.ExportInterval
		}

		pid := projectID
		if pid == 0 {
			pid = deps.cfg.ExportProjectID
		}

		dests, err := exportDestinations(cmd.Context(), out, toS3)
		if err != nil {
			return err
		}
		sched := export.NewScheduler(deps.store, pid, dests, interval, logger)

		if interval <= 0 {
			return sched.RunOnce(cmd.Context())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		sched.Start()
		fmt.Fprintf(os.Stderr, "Exporting every %s (Ctrl-C to stop)\n", interval)
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

func exportDestinations(ctx context.Context, out string, toS3 bool) ([]export.Destination, error) {
	var dests []export.Destination
	if out != "" {
		dests = append(dests, &export.FileDestination{Path: out})
	}
	if toS3 {
		cfg := deps.cfg
		d, err := export.NewS3Destination(ctx, cfg.ExportS3Bucket, cfg.ExportS3Key, cfg.ExportS3Region, cfg.ExportS3Endpoint)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	if len(dests) == 0 {
		dests = append(dests, writerDestination{w: os.Stdout})
	}
	return dests, nil
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "write the export to this file")
	exportCmd.Flags().Bool("s3", false, "upload the export to JOURNEYS_EXPORT_S3_BUCKET")
	exportCmd.Flags().Duration("interval", time.Duration(0), "repeat the export on this interval (default $JOURNEYS_EXPORT_INTERVAL)")
}
