package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trueface/internal/attendance"
)

type opener func(ctx context.Context) (*attendance.Service, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect the TRUE-FACE attendance store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newListCmd(open), newSessionCmd(open), newLogoutCmd(open))
	return root
}

// withService opens the store for one command and closes it afterwards.
func withService(cmd *cobra.Command, open opener, fn func(ctx context.Context, svc *attendance.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, svc)
}

func newListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:       "list teachers|students|sessions",
		Short:     "Print one collection as a table",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"teachers", "students", "sessions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *attendance.Service) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				var err error
				switch args[0] {
				case "teachers":
					err = printTeachers(ctx, w, svc)
				case "students":
					err = printStudents(ctx, w, svc)
				case "sessions":
					err = printSessions(ctx, w, svc)
				}
				if err != nil {
					return err
				}
				return w.Flush()
			})
		},
	}
}

func printTeachers(ctx context.Context, w io.Writer, svc *attendance.Service) error {
	teachers, err := svc.ListTeachers(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSUBJECT\tCLASS")
	for _, t := range teachers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Email, t.Subject, t.ClassName)
	}
	return nil
}

func printStudents(ctx context.Context, w io.Writer, svc *attendance.Service) error {
	students, err := svc.ListStudents(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ID\tNAME\tROLL\tREGISTERED")
	for _, s := range students {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.RollNumber, s.RegisteredAt.Format(time.RFC3339))
	}
	return nil
}

func printSessions(ctx context.Context, w io.Writer, svc *attendance.Service) error {
	sessions, err := svc.ListAttendanceSessions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "SESSION\tSUBJECT\tPRESENT\tTIMESTAMP")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Subject, s.PresentCount, s.Timestamp.Format(time.RFC3339))
	}
	return nil
}

func newSessionCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Print the stored login session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *attendance.Service) error {
				ls, ok, err := svc.CurrentSession(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintln(out, "no teacher logged in")
					return nil
				}
				fmt.Fprintf(out, "teacher_id:      %s\n", ls.TeacherID)
				fmt.Fprintf(out, "teacher_name:    %s\n", ls.TeacherName)
				fmt.Fprintf(out, "default_subject: %s\n", ls.DefaultSubject)
				fmt.Fprintf(out, "default_class:   %s\n", ls.DefaultClass)
				return nil
			})
		},
	}
}

func newLogoutCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored login session; records are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *attendance.Service) error {
				if err := svc.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}
