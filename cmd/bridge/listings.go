package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"brainbridge/internal/model"
)

func newListingsCmd(opts *rootOptions) *cobra.Command {
	var id int64

	c := &cobra.Command{
		Use:   "listings {live|in-person|course}",
		Short: "List slots or courses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := model.ResourceByName(args[0])
			if err != nil {
				return err
			}

			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			cat := a.catalog()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if r.Dated {
				var slots []model.Slot
				if id > 0 {
					s, err := cat.GetSlot(ctx, a.creds, r, id)
					if err != nil {
						return err
					}
					slots = []model.Slot{*s}
				} else if slots, err = cat.ListSlots(ctx, a.creds, r); err != nil {
					return err
				}
				return printSlots(out, slots)
			}

			var courses []model.Course
			if id > 0 {
				course, err := cat.GetCourse(ctx, a.creds, id)
				if err != nil {
					return err
				}
				courses = []model.Course{*course}
			} else if courses, err = cat.ListCourses(ctx, a.creds); err != nil {
				return err
			}
			return printCourses(out, courses)
		},
	}

	c.Flags().Int64Var(&id, "id", 0, "show a single item")
	return c
}

func printSlots(out io.Writer, slots []model.Slot) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBJECT\tDATES\tTIMES\tPRICE\tSEATS")
	for i := range slots {
		s := &slots[i]
		times := ""
		for j, tr := range s.Times {
			if j > 0 {
				times += ", "
			}
			times += tr.Start + "-" + tr.End
		}
		fmt.Fprintf(tw, "%d\t%s\t%s..%s\t%s\t%.2f\t%d/%d\n",
			s.ID, s.Subject, s.StartDate, s.EndDate, times, float64(s.Price), s.SeatsLeft(), s.MaxStudents)
	}
	return tw.Flush()
}

func printCourses(out io.Writer, courses []model.Course) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tPOINTS")
	for _, c := range courses {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\n", c.ID, c.Title, float64(c.Price), c.PointsPrice)
	}
	return tw.Flush()
}
