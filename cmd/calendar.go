package cmd

import (
	"fmt"
	"strings"

	"adspace-cli/pricing"
	"adspace-cli/storage"

	"github.com/spf13/cobra"
)

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage weekend days and holidays used for start-date multipliers",
	}

	cmd.AddCommand(calendarListCmd())
	cmd.AddCommand(calendarAddHolidayCmd())
	cmd.AddCommand(calendarRemoveHolidayCmd())
	cmd.AddCommand(calendarWeekendCmd())
	return cmd
}

func calendarListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := loadCalendar()
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cal)
			}

			names := make([]string, 0, len(cal.WeekendDays))
			for _, day := range cal.WeekendDays {
				names = append(names, day.String())
			}
			fmt.Printf("Weekend: %s\n", strings.Join(names, ", "))
			if len(cal.Holidays) == 0 {
				fmt.Println("Holidays: none")
				return nil
			}
			fmt.Println("Holidays:")
			for _, h := range cal.Holidays {
				fmt.Printf("  %s\n", h)
			}
			return nil
		},
	}

	return cmd
}

func calendarAddHolidayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-holiday <date>",
		Short: "Designate a holiday",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := pricing.ParseDate(args[0])
			if err != nil {
				return err
			}
			return updateCalendar(func(cal pricing.Calendar) (pricing.Calendar, error) {
				return cal.AddHoliday(date), nil
			}, fmt.Sprintf("Added holiday %s.", pricing.FormatDate(date)))
		},
	}

	return cmd
}

func calendarRemoveHolidayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-holiday <date>",
		Short: "Remove a holiday",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := pricing.ParseDate(args[0])
			if err != nil {
				return err
			}
			return updateCalendar(func(cal pricing.Calendar) (pricing.Calendar, error) {
				out, removed := cal.RemoveHoliday(date)
				if !removed {
					return cal, fmt.Errorf("holiday %s not found", pricing.FormatDate(date))
				}
				return out, nil
			}, fmt.Sprintf("Removed holiday %s.", pricing.FormatDate(date)))
		},
	}

	return cmd
}

func calendarWeekendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weekend <days>",
		Short: "Set the weekend days, e.g. sat,sun or fri,sat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := pricing.ParseWeekdays(args[0])
			if err != nil {
				return err
			}
			return updateCalendar(func(cal pricing.Calendar) (pricing.Calendar, error) {
				cal.WeekendDays = days
				return cal, nil
			}, "Updated weekend days.")
		},
	}

	return cmd
}

func updateCalendar(change func(pricing.Calendar) (pricing.Calendar, error), message string) error {
	path, err := calendarPath()
	if err != nil {
		return err
	}
	cal, err := storage.LoadCalendar(path)
	if err != nil {
		return err
	}
	cal, err = change(cal)
	if err != nil {
		return err
	}
	if err := storage.SaveCalendar(path, cal); err != nil {
		return err
	}
	fmt.Println(message)
	return nil
}
