package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/MarcoPoloResearchLab/photoreview/internal/photos"
	"github.com/spf13/cobra"
)

func newPhotosCommand() *cobra.Command {
	photosCmd := &cobra.Command{
		Use:   "photos",
		Short: "Inspect and review photos without the dashboard",
	}
	photosCmd.AddCommand(newPhotosListCommand(), newPhotosApproveCommand())
	return photosCmd
}

func newPhotosListCommand() *cobra.Command {
	var status, search, sortOption string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List photos with optional filtering and sorting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusFilter, err := photos.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			parsedSort, err := photos.ParseSortOption(sortOption)
			if err != nil {
				return err
			}

			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if _, err := app.photos.Refresh(cmd.Context()); err != nil {
				return err
			}
			records := app.photos.List(photos.Query{Status: statusFilter, Search: search, Sort: parsedSort})
			return writePhotoTable(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&status, "status", string(photos.StatusAll), "Approval filter (all, approved, pending)")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive match on title, photographer or tag")
	cmd.Flags().StringVar(&sortOption, "sort", string(photos.SortDateNewest), "Sort order (date-newest, date-oldest, photographer-az, photographer-za, title-az, title-za)")
	return cmd
}

func newPhotosApproveCommand() *cobra.Command {
	var reject bool
	var reviewer string
	cmd := &cobra.Command{
		Use:   "approve <photo-id>",
		Short: "Write the approval flag of one photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if _, err := app.photos.Refresh(cmd.Context()); err != nil {
				return err
			}
			change, err := app.photos.SetApproval(cmd.Context(), args[0], !reject, reviewer)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (row %d)\n", change.PhotoID, approvalLabel(change.Approved), change.Row)
			return err
		},
	}
	cmd.Flags().BoolVar(&reject, "reject", false, "Clear the approval flag instead of setting it")
	cmd.Flags().StringVar(&reviewer, "reviewer", "cli", "Reviewer recorded in the change history")
	return cmd
}

func writePhotoTable(out io.Writer, records []photos.Photo) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tPHOTOGRAPHER\tUPLOADED\tTAGS\tTITLE")
	for _, record := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			record.ID,
			approvalLabel(record.Approved),
			record.Photographer,
			record.UploadDate.Format("2006-01-02"),
			strings.Join(record.Tags, ","),
			record.Title,
		)
	}
	return writer.Flush()
}

func approvalLabel(approved bool) string {
	if approved {
		return "approved"
	}
	return "pending"
}
