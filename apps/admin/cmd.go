package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/services/apiclient"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotSignedIn = errors.New("not signed in: run `admin login -username USERNAME` first")
)

type commandLine struct {
	conf       *core.Config
	logger     core.Logger
	api        *apiclient.Client
	auth       *state.Auth
	students   *state.Students
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME [-remember] - sign in; the password will be prompted next")
	fmt.Fprintln(cli.out, "  logout - sign out")
	fmt.Fprintln(cli.out, "  status - show who is signed in")
	fmt.Fprintln(cli.out, "  students [-search TEXT] - list students")
	fmt.Fprintln(cli.out, "  attendance [-month M] [-year Y] - show the monthly attendance")
	fmt.Fprintln(cli.out, "  watch [-interval DURATION] - print a notice whenever a student's arrival is recorded")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginUname := loginCmd.String("username", "", "The admin's username. The password will be prompted next.")
	loginRemember := loginCmd.Bool("remember", false, "Stay signed in across runs.")

	studentsCmd := flag.NewFlagSet("students", flag.ExitOnError)
	studentsSearch := studentsCmd.String("search", "", "Only list students matching this text.")

	attendanceCmd := flag.NewFlagSet("attendance", flag.ExitOnError)
	attendanceMonth := attendanceCmd.Int("month", 0, "Month (1-12); defaults to the current month.")
	attendanceYear := attendanceCmd.Int("year", 0, "Year; defaults to the current year.")

	watchCmd := flag.NewFlagSet("watch", flag.ExitOnError)
	watchInterval := watchCmd.Duration("interval", cli.conf.Notifier.Interval, "Polling interval.")

	cli.auth.Initialize()

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginUname, string(pwd), *loginRemember)
	case "logout":
		return cli.logout()
	case "status":
		return cli.status()
	case "students":
		if err := studentsCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.listStudents(ctx, *studentsSearch)
	case "attendance":
		if err := attendanceCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.showAttendance(ctx, time.Month(*attendanceMonth), *attendanceYear)
	case "watch":
		if err := watchCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.watch(ctx, *watchInterval)
	default:
		cli.printUsage()
		return errHelp
	}
}

// authedAPI returns the API client, failing when no admin is signed in.
func (cli *commandLine) authedAPI() (*apiclient.Client, error) {
	if !cli.auth.Session().IsAuthenticated {
		return nil, errNotSignedIn
	}
	return cli.api.WithTokens(cli.auth), nil
}

// checkSession signs the admin out when the API rejected the stored token.
func (cli *commandLine) checkSession(err error) error {
	if apiclient.IsUnauthorized(err) {
		cli.auth.Logout()
		return errors.Wrap(errNotSignedIn, "session expired")
	}
	return err
}
