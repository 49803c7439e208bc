package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/attendance"
	emailsvc "github.com/trezcool/masomo-admin/services/email"
	"github.com/trezcool/masomo-admin/services/notifier"
)

// watch runs the arrival notifier until ctx is done. Arrivals are emailed too when SendGrid is configured.
func (cli *commandLine) watch(ctx context.Context, interval time.Duration) error {
	api, err := cli.authedAPI()
	if err != nil {
		return err
	}

	var sink notifier.Sink = notifier.NewWriterSink(cli.out)
	if cli.conf.Email.SendgridAPIKey != "" && len(cli.conf.Email.ArrivalsTo) > 0 {
		mailer := emailsvc.NewSendgridService(cli.conf, cli.logger)
		sink = notifier.Sinks{sink, emailsvc.NewArrivalSink(mailer, cli.conf.AppName, cli.conf.Email.ArrivalsTo)}
	}

	ntf := notifier.New(
		attendance.NewService(api),
		sink,
		notifier.Options{
			Interval: interval,
			Window:   attendance.Window{Month: time.Month(cli.conf.Notifier.Month), Year: cli.conf.Notifier.Year},
			Location: cli.conf.Notifier.Location,
			Logger:   cli.logger,
		},
	)
	fmt.Fprintf(cli.out, "Watching arrivals every %s, press Ctrl+C to stop.\n", interval)

	if err = ntf.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
