package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jobmate/marketplace-service/internal/config"
	"jobmate/marketplace-service/internal/marketplace"
)

// JobsCmd groups read-only job inspection commands.
func JobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect jobs in the configured store",
	}
	cmd.AddCommand(jobsShowCmd())
	cmd.AddCommand(jobsListCmd())
	return cmd
}

func jobsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [job-id]",
		Short: "Show a job with its applicants and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *marketplace.Service) error {
				job, err := svc.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJob(os.Stdout, job)
				return nil
			})
		},
	}
}

func jobsListCmd() *cobra.Command {
	var filter struct {
		client, status, tag string
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *marketplace.Service) error {
				jobs, err := svc.ListJobs(cmd.Context(), marketplace.JobFilter{
					Client: filter.client,
					Status: marketplace.JobStatus(filter.status),
					Tag:    filter.tag,
				})
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Println("No jobs found")
					return nil
				}
				for _, j := range jobs {
					fmt.Printf("%s  %s  %-24s  %d applicant(s)\n",
						j.ID, statusLabel(j.Status), j.Title, len(j.Applicants))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.client, "client", "", "filter by owning client id")
	cmd.Flags().StringVar(&filter.status, "status", "", "filter by status (open, in-progress, completed, cancelled)")
	cmd.Flags().StringVar(&filter.tag, "tag", "", "filter by tag")
	return cmd
}

func withService(ctx context.Context, fn func(*marketplace.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	store, closeStore, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	svc := marketplace.NewService(store,
		marketplace.WithUserDirectory(store),
		marketplace.WithLogger(slog.New(slog.DiscardHandler)),
	)
	return fn(svc)
}

func statusLabel(s marketplace.JobStatus) string {
	switch s {
	case marketplace.JobOpen:
		return color.New(color.FgGreen).Sprintf("%-11s", s)
	case marketplace.JobInProgress:
		return color.New(color.FgYellow).Sprintf("%-11s", s)
	case marketplace.JobCompleted:
		return color.New(color.FgCyan).Sprintf("%-11s", s)
	default:
		return color.New(color.FgRed).Sprintf("%-11s", s)
	}
}

func applicantLabel(s marketplace.ApplicantStatus) string {
	switch s {
	case marketplace.ApplicantAccepted:
		return color.New(color.FgGreen).Sprint("✓ accepted")
	case marketplace.ApplicantRejected:
		return color.New(color.FgRed).Sprint("✗ rejected")
	default:
		return color.New(color.FgYellow).Sprint("… pending")
	}
}

func printJob(w io.Writer, j *marketplace.JobView) {
	owner := j.Client
	if j.Owner != nil && j.Owner.Username != "" {
		owner = fmt.Sprintf("%s <%s>", j.Owner.Username, j.Owner.Email)
	}
	bold := color.New(color.Bold)
	fmt.Fprintf(w, "%s  %s\n", bold.Sprint(j.Title), statusLabel(j.Status))
	fmt.Fprintf(w, "  id:       %s\n", j.ID)
	fmt.Fprintf(w, "  client:   %s\n", owner)
	fmt.Fprintf(w, "  budget:   %.2f\n", j.Budget)
	fmt.Fprintf(w, "  deadline: %s\n", j.Deadline.Format(time.RFC3339))
	if len(j.Tags) > 0 {
		fmt.Fprintf(w, "  tags:     %v\n", j.Tags)
	}

	fmt.Fprintf(w, "\n  Applicants (%d)\n", len(j.Applicants))
	for _, a := range j.Applicants {
		fmt.Fprintf(w, "    %-36s  %s  %s\n", a.User, applicantLabel(a.Status), a.AppliedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "\n  Comments (%d)\n", len(j.Comments))
	for _, c := range j.Comments {
		fmt.Fprintf(w, "    [%s] %s: %s\n", c.CreatedAt.Format(time.RFC3339), c.Author, c.Text)
	}
}
