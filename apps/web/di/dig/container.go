package dig_container

import (
	"context"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoweb "github.com/trezcool/masomo-admin/apps/web/echo"
	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/attendance"
	"github.com/trezcool/masomo-admin/core/payment"
	"github.com/trezcool/masomo-admin/core/state"
	"github.com/trezcool/masomo-admin/services/apiclient"
	emailsvc "github.com/trezcool/masomo-admin/services/email"
	logsvc "github.com/trezcool/masomo-admin/services/logger"
	"github.com/trezcool/masomo-admin/services/notifier"
	"github.com/trezcool/masomo-admin/services/tokenstore"
)

type (
	// Toasts is where the notifier delivers and where the web app subscribes.
	// Relay is nil unless toasts go through Redis.
	// Exclusive wraps a sink so that one instance only delivers each arrival to it.
	Toasts struct {
		Sink       notifier.Sink
		Subscriber notifier.Subscriber
		Relay      func(ctx context.Context) error
		Exclusive  func(scope string, s notifier.Sink) notifier.Sink
		Close      func() error
	}

	NotifierTokensParam struct {
		dig.In
		Tokens tokenstore.TokenStore `name:"notifierTokens"`
	}

	ServerParam struct {
		dig.In
		Conf           *core.Config
		Logger         core.Logger
		API            *apiclient.Client
		Cookies        *tokenstore.CookieCodec
		Students       *state.Students
		Ledger         *payment.Ledger
		Toasts         *Toasts
		Validate       *validator.Validate
		Translator     ut.Translator
		Registry       *prometheus.Registry
		NotifierTokens tokenstore.TokenStore `name:"notifierTokens"`
	}
)

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New("WEB", conf)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newAPIClient(conf *core.Config, logger core.Logger, reg *prometheus.Registry) *apiclient.Client {
	return apiclient.New(apiclient.Options{
		BaseURL:    conf.API.BaseURL,
		Timeout:    conf.API.Timeout,
		Logger:     logger,
		Registerer: reg,
	})
}

func newCookieCodec(conf *core.Config, logger core.Logger) *tokenstore.CookieCodec {
	return tokenstore.NewCookieCodec(conf.SecretKey, conf.Session.RememberFor, conf.Session.SecureCookies, logger)
}

func newLedger() *payment.Ledger {
	return payment.NewLedger(payment.Seed(time.Now())...)
}

func newNotifierTokens() tokenstore.TokenStore {
	return tokenstore.NewMemory()
}

// newToasts fans toasts out through Redis when configured and reachable, in-process otherwise.
func newToasts(conf *core.Config, logger core.Logger) *Toasts {
	local := notifier.NewBroadcaster(16)
	toasts := &Toasts{
		Sink:       local,
		Subscriber: local,
		Exclusive:  func(_ string, s notifier.Sink) notifier.Sink { return s },
		Close:      func() error { return nil },
	}
	if conf.Redis.Addr == "" {
		return toasts
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, broadcasting toasts in-process only", errors.Wrap(err, conf.Redis.Addr))
		_ = client.Close()
		return toasts
	}

	rb := notifier.NewRedisBroadcaster(client, conf.Redis.Channel, local, logger)
	toasts.Sink = rb
	toasts.Subscriber = rb
	toasts.Relay = rb.Relay
	toasts.Exclusive = rb.Exclusive
	toasts.Close = client.Close
	return toasts
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	return emailsvc.NewService(conf, logger, emailsvc.NewConsoleService(conf, os.Stdout))
}

// newNotifier polls with the configured token, or else with the token of the last admin who signed in.
// Arrivals are also emailed when recipients are configured.
func newNotifier(conf *core.Config, logger core.Logger, api *apiclient.Client, toasts *Toasts, mailer core.EmailService, reg *prometheus.Registry, tokens NotifierTokensParam) *notifier.Notifier {
	var ts apiclient.TokenSource = tokens.Tokens
	if conf.Notifier.Token != "" {
		ts = tokenstore.Static(conf.Notifier.Token)
	}
	sink := toasts.Sink
	if len(conf.Email.ArrivalsTo) > 0 {
		mail := emailsvc.NewArrivalSink(mailer, conf.AppName, conf.Email.ArrivalsTo)
		sink = notifier.Sinks{sink, toasts.Exclusive("email", mail)}
	}
	return notifier.New(
		attendance.NewService(api.WithTokens(ts)),
		sink,
		notifier.Options{
			Interval:   conf.Notifier.Interval,
			Window:     attendance.Window{Month: time.Month(conf.Notifier.Month), Year: conf.Notifier.Year},
			Location:   conf.Notifier.Location,
			Logger:     logger,
			Registerer: reg,
		},
	)
}

func newServer(p ServerParam) (*echoweb.Server, error) {
	return echoweb.NewServer(p.Conf.Server.Address, nil, &echoweb.Deps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		API:            p.API,
		Cookies:        p.Cookies,
		Students:       p.Students,
		Ledger:         p.Ledger,
		Toasts:         p.Toasts.Subscriber,
		Validate:       p.Validate,
		Translator:     p.Translator,
		NotifierTokens: p.NotifierTokens,
		Metrics:        promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}),
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newRegistry))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(newAPIClient))
	must(c.Provide(newCookieCodec))
	must(c.Provide(state.NewStudents))
	must(c.Provide(newLedger))
	must(c.Provide(newNotifierTokens, dig.Name("notifierTokens")))
	must(c.Provide(newToasts))
	must(c.Provide(newEmailService))
	must(c.Provide(newNotifier))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
