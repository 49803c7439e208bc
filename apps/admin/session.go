package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/auth"
)

// login signs the admin in. A failed login leaves any previous session untouched.
func (cli *commandLine) login(ctx context.Context, uname, pwd string, remember bool) error {
	lr := auth.LoginRequest{Username: uname, Password: pwd, RememberMe: remember}
	if err := lr.Validate(cli.validate); err != nil {
		return core.ValidationErrorFrom(err, cli.translator)
	}

	resp, err := auth.NewService(cli.api).Login(ctx, lr)
	if err != nil {
		return err
	}
	if err = cli.auth.LoginSuccess(resp.Token, remember); err != nil {
		return errors.Wrap(err, "storing session")
	}

	if remember {
		fmt.Fprintf(cli.out, "Signed in as %s.\n", lr.Username)
	} else {
		fmt.Fprintf(cli.out, "Signed in as %s for this run only; use -remember to stay signed in.\n", lr.Username)
	}
	return nil
}

func (cli *commandLine) logout() error {
	cli.auth.Logout()
	fmt.Fprintln(cli.out, "Signed out.")
	return nil
}

func (cli *commandLine) status() error {
	sess := cli.auth.Session()
	if !sess.IsAuthenticated {
		fmt.Fprintln(cli.out, "Not signed in.")
		return nil
	}

	claims, ok := auth.PeekClaims(sess.Token)
	if !ok {
		fmt.Fprintln(cli.out, "Signed in.")
		return nil
	}
	fmt.Fprintf(cli.out, "Signed in as %s", claims.Username)
	if !claims.ExpiresAt.IsZero() {
		fmt.Fprintf(cli.out, " until %s", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(cli.out, ".")
	return nil
}
