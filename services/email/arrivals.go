package emailsvc

import (
	"bytes"
	"context"
	"embed"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/services/notifier"
)

//go:embed templates/*
var templatesFS embed.FS

var (
	arrivalText = texttmpl.Must(texttmpl.ParseFS(templatesFS, "templates/_base.txt", "templates/arrival.txt")).
			Option("missingkey=error")
	arrivalHTML = htmltmpl.Must(htmltmpl.ParseFS(templatesFS, "templates/_base.gohtml", "templates/arrival.gohtml")).
			Option("missingkey=error")

	nowFunc = time.Now
)

type arrivalData struct {
	AppName string
	Toast   notifier.Toast
}

// ArrivalSink emails every arrival toast to a fixed list of recipients.
type ArrivalSink struct {
	svc     core.EmailService
	to      []mail.Address
	appName string
}

var _ notifier.Sink = (*ArrivalSink)(nil)

func NewArrivalSink(svc core.EmailService, appName string, to []mail.Address) *ArrivalSink {
	return &ArrivalSink{svc: svc, to: to, appName: appName}
}

func (s *ArrivalSink) Toast(ctx context.Context, t notifier.Toast) error {
	msg, err := s.message(t)
	if err != nil {
		return err
	}
	return errors.Wrap(s.svc.SendMessages(ctx, msg), "emailing arrival")
}

func (s *ArrivalSink) message(t notifier.Toast) (*core.EmailMessage, error) {
	data := arrivalData{AppName: s.appName, Toast: t}

	var text, html bytes.Buffer
	if err := arrivalText.Execute(&text, data); err != nil {
		return nil, errors.Wrap(err, "rendering arrival text")
	}
	if err := arrivalHTML.Execute(&html, data); err != nil {
		return nil, errors.Wrap(err, "rendering arrival html")
	}

	return &core.EmailMessage{
		To:          s.to,
		Subject:     t.Message,
		TextContent: text.String(),
		HTMLContent: html.String(),
	}, nil
}
