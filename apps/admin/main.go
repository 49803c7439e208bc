package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/services/apiclient"
	logsvc "github.com/trezcool/masomo-admin/services/logger"
	"github.com/trezcool/masomo-admin/services/tokenstore"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.New("ADMIN", conf)

	translator := core.NewTranslator()
	tokens := tokenstore.New(
		tokenstore.NewFileTier(conf.CLI.CredentialsFile, logger),
		tokenstore.NewMemoryTier(),
	)

	// start CLI
	cli := commandLine{
		conf:       conf,
		logger:     logger,
		api:        apiclient.New(apiclient.Options{BaseURL: conf.API.BaseURL, Timeout: conf.API.Timeout, Logger: logger}),
		auth:       state.NewAuth(tokens),
		students:   state.NewStudents(),
		validate:   core.NewValidator(translator),
		translator: translator,
		out:        os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.run(ctx, os.Args)
	stop()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
