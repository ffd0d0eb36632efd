package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quadrant-tasks/quadrant/internal/schedule"
	"github.com/quadrant-tasks/quadrant/internal/schema"
	"github.com/quadrant-tasks/quadrant/internal/ui"
)

var (
	schedFreq       string
	schedPriority   string
	schedNotes      string
	schedWeekDay    int
	schedMonthDay   int
	schedQuarterDay int
	schedYearMonth  int
	schedYearDay    int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring tasks",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a recurring task",
	Long: `Create a recurring task template. Each time it comes due, a concrete
task is spawned and the schedule advances.

Frequency parameters:
  weekly     --week-day 1..7 (1=Monday)
  monthly    --month-day 1..31 (clamped to month length)
  quarterly  --quarter-day N (day of the quarter's first month)
  yearly     --year-month 1..12 --year-day N`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		scheduler := schedule.NewScheduler(a.cache, a.store, nil)
		sched, err := scheduler.Create(schedule.CreateOptions{
			Title:     args[0],
			Priority:  schedPriority,
			Notes:     schedNotes,
			Frequency: schema.Frequency(schedFreq),
			Params: schedule.Params{
				WeekDay:    schedWeekDay,
				MonthDay:   schedMonthDay,
				QuarterDay: schedQuarterDay,
				YearMonth:  schedYearMonth,
				YearDay:    schedYearDay,
			},
		})
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("Created %s, first run %s\n",
			ui.RenderAccent(sched.ID), ui.RenderDim(sched.NextRunAt))
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurring tasks",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		schedules, err := a.store.ListSchedules(false, "")
		if err != nil {
			fatalf("failed to list schedules: %v", err)
		}
		if len(schedules) == 0 {
			fmt.Println("No recurring tasks.")
			return
		}

		for _, s := range schedules {
			state := ui.RenderDone("active")
			if !s.Active {
				state = ui.RenderWarn("inactive")
			}
			fmt.Printf("%s  %-9s %s  next %s  %s\n",
				ui.RenderAccent(s.Title), s.Frequency, state,
				ui.RenderDim(s.NextRunAt), ui.RenderDim(s.ID))
		}
	},
}

var scheduleRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a recurring task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		if err := a.store.DeleteSchedule(args[0]); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Removed %s\n", ui.RenderAccent(args[0]))
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Spawn any recurring tasks that are due now",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close()

		scheduler := schedule.NewScheduler(a.cache, a.store, nil)
		spawned, err := scheduler.SpawnDue(time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Spawned %d task(s)\n", spawned)
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&schedFreq, "freq", "daily",
		"frequency: daily, weekly, monthly, quarterly, yearly")
	scheduleAddCmd.Flags().StringVar(&schedPriority, "priority", "", "priority label for spawned tasks")
	scheduleAddCmd.Flags().StringVar(&schedNotes, "notes", "", "notes for spawned tasks")
	scheduleAddCmd.Flags().IntVar(&schedWeekDay, "week-day", 0, "weekday for weekly (1=Monday)")
	scheduleAddCmd.Flags().IntVar(&schedMonthDay, "month-day", 0, "day of month for monthly")
	scheduleAddCmd.Flags().IntVar(&schedQuarterDay, "quarter-day", 0, "day for quarterly")
	scheduleAddCmd.Flags().IntVar(&schedYearMonth, "year-month", 0, "month for yearly")
	scheduleAddCmd.Flags().IntVar(&schedYearDay, "year-day", 0, "day for yearly")

	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRmCmd, scheduleRunCmd)
	rootCmd.AddCommand(scheduleCmd)
}
