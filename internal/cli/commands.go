package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
	"github.com/Makepad-fr/tada/internal/tui"
	"github.com/Makepad-fr/tada/internal/ui"
)

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: %s %s", appName, usage)
		}
		return nil
	}
}

func parseID(cmd, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("%s: not an item id: %s", cmd, s)
	}
	return id, nil
}

func (a *App) addCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "add <description...>",
		Short: "Add a new item (description can be multiple words)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("usage: %s add <description...>", appName)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			v, err := l.Create(cmd.Context(), strings.Join(args, " "), status)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			ui.OK(fmt.Sprintf("added #%d (%s)", v.ID, v.CurrentStatus))
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Initial status (default New)")
	return cmd
}

func (a *App) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List items with their current status",
		Args:    exactArgs(0, "ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			views, err := l.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			ui.Panel(listPanel(views, a.flags.group))
			return nil
		},
	}
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item",
		Args:  exactArgs(1, "show <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("show", args[0])
			if err != nil {
				return err
			}
			l, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			v, err := l.Find(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("show: %w", err)
			}
			ui.Panel(itemPanel(v))
			return nil
		},
	}
}

func (a *App) updateCmd() *cobra.Command {
	var description, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an item's description and/or status",
		Args:  exactArgs(1, "update <id> [--description text] [--status status]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("update", args[0])
			if err != nil {
				return err
			}
			if description == "" && status == "" {
				return usagef("update: nothing to change, pass --description and/or --status")
			}
			return a.update(cmd, id, description, status)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status")
	return cmd
}

func (a *App) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <status>",
		Short: "Set an item's status",
		Args:  exactArgs(2, "set <id> <status>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("set", args[0])
			if err != nil {
				return err
			}
			return a.update(cmd, id, "", args[1])
		},
	}
}

func (a *App) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark an item Completed",
		Args:  exactArgs(1, "done <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("done", args[0])
			if err != nil {
				return err
			}
			return a.update(cmd, id, "", model.StatusCompleted.String())
		},
	}
}

func (a *App) update(cmd *cobra.Command, id int64, description, status string) error {
	l, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	v, err := l.Update(cmd.Context(), id, description, status)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	ui.OK(fmt.Sprintf("#%d %s", v.ID, v.CurrentStatus))
	return nil
}

func (a *App) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an item and its history",
		Args:  exactArgs(1, "rm <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("rm", args[0])
			if err != nil {
				return err
			}
			l, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := l.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("rm: %w", err)
			}
			ui.OK(fmt.Sprintf("removed #%d", id))
			return nil
		},
	}
}

func (a *App) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show an item's status history, oldest first",
		Args:  exactArgs(1, "history <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("history", args[0])
			if err != nil {
				return err
			}
			l, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			v, err := l.Find(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			events, err := l.History(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			ui.Panel(historyPanel(v, events))
			return nil
		},
	}
}

func (a *App) statusesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "List the valid statuses",
		Args:  exactArgs(0, "statuses"),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range model.Statuses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.StatusMark(s), s)
			}
			return nil
		},
	}
}

func (a *App) seedCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty store with sample items",
		Args:  exactArgs(0, "seed [--count n]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return usagef("seed: --count must be positive")
			}
			l, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			n, err := todo.Seed(cmd.Context(), l, count)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			if n == 0 {
				ui.OK("store already has items, nothing seeded")
				return nil
			}
			ui.OK(fmt.Sprintf("seeded %d items", n))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", seedCount, "Number of items")
	return cmd
}

func (a *App) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive list",
		Args:  exactArgs(0, "tui"),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := tui.Run(cmd.Context(), l); err != nil {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		},
	}
}

// ---------------------------------------------------
// rendering helpers
// ---------------------------------------------------

func counts(views []model.View) map[model.Status]int {
	c := make(map[model.Status]int, len(model.Statuses))
	for _, v := range views {
		c[v.CurrentStatus]++
	}
	return c
}

func listPanel(views []model.View, group bool) []string {
	t := ui.Current()
	c := counts(views)

	header := ui.C(t.Title, "Todos")
	for _, s := range model.Statuses {
		header += fmt.Sprintf("  %s %d", ui.StatusMark(s), c[s])
	}
	header += fmt.Sprintf("  %s %d", ui.C(t.Accent, "Total"), len(views))

	lines := []string{
		header,
		ui.C(t.Muted, ui.ProgressBar(c[model.StatusCompleted], len(views), 28)),
		"",
	}
	if group {
		lines = append(lines, groupLines(views)...)
	} else {
		lines = append(lines, flatLines(views)...)
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: add with `tada add \"Buy milk\"`"))
	return lines
}

func flatLines(views []model.View) []string {
	if len(views) == 0 {
		return []string{ui.C(ui.Current().Muted, "no items")}
	}
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, fmt.Sprintf("%s %s %s",
			ui.Dim(fmt.Sprintf("%3d.", v.ID)), ui.StatusMark(v.CurrentStatus), ui.Truncate(v.Description, 80)))
	}
	return out
}

func groupLines(views []model.View) []string {
	var lines []string
	for i, s := range model.Statuses {
		var in []model.View
		for _, v := range views {
			if v.CurrentStatus == s {
				in = append(in, v)
			}
		}
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, ui.C(ui.Current().Accent, string(s)))
		if len(in) == 0 {
			lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
			continue
		}
		lines = append(lines, flatLines(in)...)
	}
	return lines
}

func itemPanel(v model.View) []string {
	t := ui.Current()
	return []string{
		ui.C(t.Title, fmt.Sprintf("#%d", v.ID)) + " " + v.Description,
		"",
		fmt.Sprintf("status    %s %s", ui.StatusMark(v.CurrentStatus), v.CurrentStatus),
		fmt.Sprintf("created   %s", stamp(v.CreatedAt)),
		fmt.Sprintf("modified  %s", stamp(v.LastModifiedAt)),
	}
}

func historyPanel(v model.View, events []model.StatusEvent) []string {
	t := ui.Current()
	lines := []string{ui.C(t.Title, fmt.Sprintf("History of #%d", v.ID)) + " " + ui.Truncate(v.Description, 60), ""}
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("%s %-10s %s",
			ui.StatusMark(ev.Status), ev.Status, ui.C(t.Muted, stamp(ev.Timestamp))))
	}
	return lines
}

func stamp(ts time.Time) string { return ts.Local().Format(time.DateTime) }
