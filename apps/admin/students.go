package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/trezcool/masomo-admin/core/student"
)

func (cli *commandLine) listStudents(ctx context.Context, search string) error {
	api, err := cli.authedAPI()
	if err != nil {
		return err
	}

	list, err := cli.students.Refresh(ctx, student.NewService(api).List)
	if err != nil {
		return cli.checkSession(err)
	}
	found := student.Filter(list.Items, search)

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tEMAIL\tPHONE\tSTATUS")
	for _, s := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.FullName(), s.Username, s.Email, s.Phone, s.Status)
	}
	if err = tw.Flush(); err != nil {
		return err
	}

	active, inactive := student.Counts(list.Items)
	fmt.Fprintf(cli.out, "%d of %d students (%d active, %d inactive)\n", len(found), len(list.Items), active, inactive)
	return nil
}
