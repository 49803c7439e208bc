package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/trezcool/masomo-admin/core/attendance"
)

var nowFunc = time.Now // mockable

func (cli *commandLine) showAttendance(ctx context.Context, month time.Month, year int) error {
	api, err := cli.authedAPI()
	if err != nil {
		return err
	}

	window := attendance.Window{Month: month, Year: year}.Resolve(nowFunc())
	records, err := attendance.NewService(api).Fetch(ctx, window)
	if err != nil {
		return cli.checkSession(err)
	}
	grid := attendance.BuildGrid(window, records)

	fmt.Fprintf(cli.out, "Attendance for %s\n", grid.Window)
	tw := tabwriter.NewWriter(cli.out, 0, 4, 1, ' ', 0)
	header := make([]string, 0, len(grid.Days))
	for _, d := range grid.Days {
		header = append(header, fmt.Sprint(d))
	}
	fmt.Fprintf(tw, "STUDENT\t%s\tP\tA\n", strings.Join(header, "\t"))
	for _, row := range grid.Rows {
		cells := make([]string, 0, len(grid.Days))
		for _, d := range grid.Days {
			if row.Status(d) == attendance.StatusPresent {
				cells = append(cells, "P")
			} else {
				cells = append(cells, "A")
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", row.Student.Name, strings.Join(cells, "\t"), row.Present, row.Absent)
	}
	if err = tw.Flush(); err != nil {
		return err
	}

	st := grid.Stats
	fmt.Fprintf(cli.out, "%d school days, %d students: %d present (%.1f%%), %d absent (%.1f%%)\n",
		st.TotalDays, st.TotalStudents, st.PresentCount, st.PresentPercentage, st.AbsentCount, st.AbsentPercentage)
	return nil
}
