package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/quadrant-tasks/quadrant/internal/cache"
	"github.com/quadrant-tasks/quadrant/internal/schema"
	"github.com/quadrant-tasks/quadrant/internal/ui"
)

var (
	addDue      string
	addPriority string
	addNotes    string
	addColor    string

	listAll    bool
	listActive bool
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Create a task",
	Long: `Create a task with the given text.

The --due flag accepts natural language ("next friday", "tomorrow") as well
as plain YYYY-MM-DD dates.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		due := addDue
		if due != "" {
			if parsed := parseDue(due); parsed != "" {
				due = parsed
			}
		}

		task := &schema.Task{
			ID:    uuid.NewString(),
			Color: addColor,
		}
		task.SetField("text", strings.Join(args, " "))
		task.SetField("due_date", due)
		task.SetField("priority", addPriority)
		task.SetField("notes", addNotes)
		task.SetField("create_date", schema.Today())

		if err := a.cache.SaveTask(task); err != nil {
			fatalf("failed to save task: %v", err)
		}

		fmt.Printf("Added %s\n", ui.RenderAccent(task.ID))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List visible tasks: not deleted, and either incomplete or completed
today. Use --all for every task including tombstones, or --active for
incomplete tasks only.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		filter := cache.Visible
		switch {
		case listAll:
			filter = cache.All
		case listActive:
			filter = cache.ActiveOnly
		}

		tasks := a.cache.LoadTasks(filter)
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return
		}

		for _, t := range tasks {
			marker := "[ ]"
			if t.Completed {
				marker = ui.RenderDone("[x]")
			}
			if t.Deleted {
				marker = ui.RenderWarn("[d]")
			}
			line := fmt.Sprintf("%s %s  %s", marker, ui.RenderAccent(t.Field("text")), ui.RenderDim(t.ID))
			if due := t.Field("due_date"); due != "" {
				line += ui.RenderDim("  due " + due)
			}
			fmt.Println(line)
		}
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed today",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		task, ok := a.cache.GetTask(args[0])
		if !ok {
			fatalf("unknown task %s", args[0])
		}

		task.Completed = true
		task.CompletedDate = schema.Today()
		if err := a.cache.SaveTask(task); err != nil {
			fatalf("failed to save task: %v", err)
		}

		fmt.Printf("Completed %s\n", ui.RenderAccent(task.ID))
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task (logical delete)",
	Long: `Mark a task deleted. The record is kept as a tombstone so the delete
replicates to the remote; it simply disappears from listings.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		if !a.cache.DeleteTask(args[0]) {
			fatalf("unknown task %s", args[0])
		}

		// Push the tombstone out without waiting for the next sync round.
		if a.syncer.Configured() {
			if err := a.syncer.Upload(cmd.Context()); err != nil {
				fmt.Printf("%s\n", ui.RenderWarn("Upload failed, will retry on next sync"))
			}
		}

		fmt.Printf("Deleted %s\n", ui.RenderAccent(args[0]))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show a task's per-field change history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		byField, err := a.cache.TaskHistory(args[0])
		if err != nil {
			fatalf("failed to load history: %v", err)
		}
		if len(byField) == 0 {
			fmt.Println("No history.")
			return
		}

		names := make([]string, 0, len(byField))
		for name := range byField {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Println(ui.RenderAccent(name))
			for _, entry := range byField[name] {
				fmt.Printf("  %s %-6s %q\n", ui.RenderDim(entry.Timestamp), entry.Action, entry.Value)
			}
		}
	},
}

// parseDue turns natural-language or ISO dates into YYYY-MM-DD, returning
// "" when nothing parses (the raw input is kept in that case).
func parseDue(input string) string {
	if t, err := time.Parse("2006-01-02", input); err == nil {
		return t.Format("2006-01-02")
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(input, time.Now())
	if err != nil || result == nil {
		return ""
	}
	return result.Time.Format("2006-01-02")
}

func init() {
	addCmd.Flags().StringVar(&addDue, "due", "", "due date (natural language or YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addPriority, "priority", "", "priority label")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "notes")
	addCmd.Flags().StringVar(&addColor, "color", "", "display color (hex)")

	listCmd.Flags().BoolVar(&listAll, "all", false, "include completed and deleted tasks")
	listCmd.Flags().BoolVar(&listActive, "active", false, "only incomplete tasks")

	rootCmd.AddCommand(addCmd, listCmd, doneCmd, rmCmd, historyCmd)
}
