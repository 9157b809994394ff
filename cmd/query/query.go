// Package query implements read-only lookups against the attendance store.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/attendsync/attendance-monitor/internal/app"
	"github.com/attendsync/attendance-monitor/internal/datastore"
)

const dateLayout = "2006-01-02"

type options struct {
	json  bool
	limit int
	from  string
	to    string
	event string
}

// Command creates the query command and its subcommands.
func Command(appCtx *app.Context) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Look up reconciled attendance, events and duplicates",
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON instead of a table")
	cmd.PersistentFlags().IntVar(&opts.limit, "limit", 50, "Maximum number of entries")

	dateCmd := &cobra.Command{
		Use:   "date <YYYY-MM-DD>",
		Short: "Records of one punch date, ordered by employee id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.ParseInLocation(dateLayout, args[0], time.UTC)
			if err != nil {
				return fmt.Errorf("invalid date %q, want YYYY-MM-DD", args[0])
			}
			return withStore(cmd.Context(), appCtx, func(q datastore.Querier) error {
				records, err := q.RecordsByDate(cmd.Context(), day)
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), records, opts.json)
			})
		},
	}

	employeeCmd := &cobra.Command{
		Use:   "employee <id>",
		Short: "Records of one employee, ordered by date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseRange(opts.from, opts.to)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), appCtx, func(q datastore.Querier) error {
				records, err := q.RecordsByEmployee(cmd.Context(), args[0], from, to)
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), records, opts.json)
			})
		},
	}
	employeeCmd.Flags().StringVar(&opts.from, "from", "", "First date, YYYY-MM-DD")
	employeeCmd.Flags().StringVar(&opts.to, "to", "", "Last date, YYYY-MM-DD")

	employeesCmd := &cobra.Command{
		Use:   "employees <text>",
		Short: "Employees whose id or name contains text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), appCtx, func(q datastore.Querier) error {
				list, err := q.EmployeeSuggestions(cmd.Context(), args[0], opts.limit)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), list)
				}
				return printTable(cmd.OutOrStdout(), []string{"EMPLOYEE ID", "NAME"}, len(list), func(i int) []string {
					return []string{list[i].EmployeeID, list[i].EmployeeName}
				})
			})
		},
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Newest entries of the processing event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), appCtx, func(q datastore.Querier) error {
				list, err := q.RecentEvents(cmd.Context(), opts.limit, datastore.EventType(opts.event))
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), list)
				}
				return printTable(cmd.OutOrStdout(), []string{"TIME", "TYPE", "FILE", "DESCRIPTION"}, len(list), func(i int) []string {
					e := list[i]
					return []string{e.Timestamp.Format(time.DateTime), string(e.EventType), e.FileName, e.Description}
				})
			})
		},
	}
	eventsCmd.Flags().StringVar(&opts.event, "type", "", "Only this event type (Processing, Success, Error, Warning, Skipped, Summary)")

	duplicatesCmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Newest entries of the duplicate decision log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), appCtx, func(q datastore.Querier) error {
				list, err := q.RecentDuplicates(cmd.Context(), opts.limit)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), list)
				}
				return printTable(cmd.OutOrStdout(), []string{"LOGGED", "DATE", "EMPLOYEE", "FILE", "REASON"}, len(list), func(i int) []string {
					d := list[i]
					return []string{d.LoggedAt.Format(time.DateTime), d.PunchDate.Format(dateLayout), d.EmployeeID, d.FileName, d.Reason}
				})
			})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Row counts of the attendance store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), appCtx, func(q datastore.Querier) error {
				st, err := q.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), st)
				}
				rows := [][]string{
					{"attendance records", fmt.Sprint(st.Records)},
					{"duplicate log", fmt.Sprint(st.Duplicates)},
					{"event log", fmt.Sprint(st.Events)},
					{"processed files", fmt.Sprint(st.ProcessedFiles)},
				}
				return printTable(cmd.OutOrStdout(), []string{"TABLE", "ROWS"}, len(rows), func(i int) []string { return rows[i] })
			})
		},
	}

	cmd.AddCommand(dateCmd, employeeCmd, employeesCmd, eventsCmd, duplicatesCmd, statsCmd)
	return cmd
}

func withStore(ctx context.Context, appCtx *app.Context, fn func(datastore.Querier) error) error {
	ds, err := datastore.New(appCtx.Settings.Database, appCtx.Log("datastore"))
	if err != nil {
		return err
	}
	defer ds.Close()
	if err := ds.EnsureConnected(ctx); err != nil {
		return err
	}
	return fn(ds)
}

func parseRange(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		if from, err = time.ParseInLocation(dateLayout, fromStr, time.UTC); err != nil {
			return from, to, fmt.Errorf("invalid --from %q, want YYYY-MM-DD", fromStr)
		}
	}
	if toStr != "" {
		if to, err = time.ParseInLocation(dateLayout, toStr, time.UTC); err != nil {
			return from, to, fmt.Errorf("invalid --to %q, want YYYY-MM-DD", toStr)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("--to %s is before --from %s", toStr, fromStr)
	}
	return from, to, nil
}

func printRecords(out io.Writer, records []datastore.AttendanceRecord, asJSON bool) error {
	if asJSON {
		if records == nil {
			records = []datastore.AttendanceRecord{}
		}
		return printJSON(out, records)
	}
	header := []string{"DATE", "EMPLOYEE", "NAME", "SHIFT IN", "IN", "OUT", "SHIFT OUT", "LATE BY", "HOURS", "STATUS"}
	return printTable(out, header, len(records), func(i int) []string {
		r := records[i]
		hours := "-"
		if r.HoursWorked.Valid {
			hours = r.HoursWorked.Decimal.StringFixed(2)
		}
		return []string{
			r.PunchDate.Format(dateLayout), r.EmployeeID, r.EmployeeName,
			r.ShiftIn.String(), r.PunchInTime.String(), r.PunchOutTime.String(), r.ShiftOut.String(),
			r.LateBy.String(), hours, r.Status,
		}
	})
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(out io.Writer, header []string, n int, row func(i int) []string) error {
	if n == 0 {
		_, err := fmt.Fprintln(out, "no results")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i := range n {
		fmt.Fprintln(tw, strings.Join(row(i), "\t"))
	}
	return tw.Flush()
}
