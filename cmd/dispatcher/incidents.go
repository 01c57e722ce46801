package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/incident-dispatch/internal/cli"
	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/validation"
	"github.com/spf13/cobra"
)

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register [type] [priority] [description]",
		Short: "Register a new incident",
		Long: `Register a new pending incident.
Type is one of infrastructure, security, application. Priority is one of high, medium, low.`,
		Example: `  dispatcher register security high "Unauthorized access to the billing database"`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args[2:], " ")
			return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
				id, err := d.RegisterIncident(args[0], args[1], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Incident registered with id %03d\n", id)
				return nil
			})
		},
	}
}

func newPendingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending incidents in queue order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
				pending := d.PendingIncidents()
				if len(pending) == 0 {
					fmt.Fprintln(out, "No pending incidents")
					return nil
				}
				cli.PrintIncidents(out, pending, 0)
				return nil
			})
		},
	}
}

func newAssignCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign [incident-id] [operator]",
		Short: "Assign a pending incident to an operator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
				if err := d.AssignIncident(id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Incident %03d assigned to %s\n", id, args[1])
				return nil
			})
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [incident-id]",
		Short: "Resolve an open incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
				if err := d.ResolveIncident(id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Incident %03d resolved\n", id)
				return nil
			})
		},
	}
}

func newEscalateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Escalate open incidents that waited too long",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
				n := d.AutoEscalateIncidents()
				if n == 0 {
					fmt.Fprintln(out, "No incidents need escalation")
					return nil
				}
				fmt.Fprintf(out, "%d incident(s) escalated\n", n)
				return nil
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		text     string
		typ      string
		operator string
		status   string
		priority string
		days     int
		overdue  time.Duration
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search incidents",
		Long:  `Search incidents. Every given criterion must match. Text is a case-insensitive regular expression.`,
		Example: `  dispatcher search --text "db|database" --status pending
  dispatcher search --type security --days 0
  dispatcher search --overdue 20m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := dispatch.SearchCriteria{
				Text:         text,
				Type:         domain.IncidentType(typ),
				Operator:     operator,
				Status:       domain.IncidentStatus(status),
				Priority:     domain.Priority(priority),
				DaysBack:     opts.cfg.Search.DaysBack,
				OverdueAfter: overdue,
			}
			if cmd.Flags().Changed("days") {
				criteria.DaysBack = days
			}
			if err := checkCriteria(criteria); err != nil {
				return err
			}

			return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
				results := d.SearchIncidents(criteria)
				fmt.Fprintf(out, "Results: %d incident(s)\n\n", len(results))
				cli.PrintIncidents(out, results, limit)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "pattern matched against the description")
	cmd.Flags().StringVar(&typ, "type", "", "incident type")
	cmd.Flags().StringVar(&operator, "operator", "", "assigned operator")
	cmd.Flags().StringVar(&status, "status", "", "incident status")
	cmd.Flags().StringVar(&priority, "priority", "", "incident priority")
	cmd.Flags().IntVar(&days, "days", 0, "only incidents created in the last N days, 0 for all (default from search.days_back)")
	cmd.Flags().DurationVar(&overdue, "overdue", 0, "only open incidents older than this age, e.g. 20m")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum incidents to print, 0 for all")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show incident and operator statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
				cli.PrintStatistics(out, d.Statistics())
				return nil
			})
		},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, &validation.Error{Violations: []string{fmt.Sprintf("incident id %q is not a number", s)}}
	}
	return id, nil
}

func checkCriteria(c dispatch.SearchCriteria) error {
	var violations []string
	if c.Type != "" && !c.Type.IsValid() {
		violations = append(violations, fmt.Sprintf("unknown incident type %q", c.Type))
	}
	if c.Status != "" && !c.Status.IsValid() {
		violations = append(violations, fmt.Sprintf("unknown status %q", c.Status))
	}
	if c.Priority != "" && !c.Priority.IsValid() {
		violations = append(violations, fmt.Sprintf("unknown priority %q", c.Priority))
	}
	if len(violations) > 0 {
		return &validation.Error{Violations: violations}
	}
	return nil
}
