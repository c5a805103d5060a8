package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/smartlearn/core"
)

const sendTimeout = 30 * time.Second

type sendgridService struct {
	conf       *core.Config
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService delivers messages through the SendGrid v3 mail API.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		conf:       conf,
		client:     sendgrid.NewSendClient(conf.SendgridApiKey),
		from:       sgAddress(from),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *sendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email: %v", err), errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	res, err := svc.client.SendWithContext(ctx, svc.message(*msg))
	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), errors.Wrap(err, "sending email"))
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending email - status: %d", res.StatusCode),
			map[string]interface{}{"body": res.Body, "categories": msg.Categories})
	}
}

// message maps `msg` onto a single-personalization SendGrid mail.
// Categories tag the mail for the SendGrid stats, e.g. "receipt" and the payment kind.
func (svc *sendgridService) message(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgAddresses(msg.To)...)
	if len(msg.Cc) > 0 {
		p.AddCCs(sgAddresses(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		p.AddBCCs(sgAddresses(msg.Bcc)...)
	}

	m := sgmail.NewV3Mail().SetFrom(svc.from).AddPersonalizations(p)
	if msg.ReplyTo != nil {
		m.SetReplyTo(sgAddress(*msg.ReplyTo))
	}
	if len(msg.Categories) > 0 {
		m.AddCategories(msg.Categories...)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(sgmail.NewAttachment().
			SetContent(at.Content.String()).
			SetType(at.ContentType).
			SetFilename(at.Filename).
			SetDisposition("attachment"))
	}
	return m
}

func sgAddress(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func sgAddresses(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, a := range addrs {
		emails = append(emails, sgAddress(a))
	}
	return emails
}
