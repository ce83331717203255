// Package notify renders and sends the customer e-mails for order events.
package notify

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/flicky/ezpc-api/internal/model"
)

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string
	StoreName string
}

type Mailer struct {
	cfg Config
}

func NewMailer(cfg Config) *Mailer {
	if cfg.StoreName == "" {
		cfg.StoreName = "EZPC_"
	}
	return &Mailer{cfg: cfg}
}

var orderPlacedTmpl = template.Must(template.New("placed").Parse(`<h2>Thanks for your order, {{.Name}}!</h2>
<p>Order <strong>{{.OrderID}}</strong> was received and is now <strong>{{.Status}}</strong>.</p>
<table cellpadding="4">
<tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">&#8369;{{.Price.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Total: <strong>&#8369;{{.Total}}</strong> ({{.PaymentMethod}})</p>
<p>Shipping to {{.Address.Recipient}}, {{.Address.Line1}}, {{.Address.City}}</p>
<p>{{.StoreName}}</p>`))

var statusChangedTmpl = template.Must(template.New("status").Parse(`<h2>Hi {{.Name}},</h2>
<p>Your order <strong>{{.OrderID}}</strong> is now <strong>{{.Status}}</strong>{{if .Previous}} (was {{.Previous}}){{end}}.</p>
<p>{{.StoreName}}</p>`))

type orderMailData struct {
	Name          string
	OrderID       string
	Status        model.OrderStatus
	Previous      model.OrderStatus
	Items         []model.OrderItem
	Total         string
	PaymentMethod model.PaymentMethod
	Address       model.ShippingAddress
	StoreName     string
}

func (m *Mailer) OrderPlaced(ctx context.Context, user *model.User, order *model.Order) error {
	msg, err := m.orderPlacedMsg(user, order)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *Mailer) OrderStatusChanged(ctx context.Context, user *model.User, order *model.Order, previous model.OrderStatus) error {
	msg, err := m.statusChangedMsg(user, order, previous)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *Mailer) orderPlacedMsg(user *model.User, order *model.Order) (*mail.Msg, error) {
	subject := fmt.Sprintf("%s order %s received", m.cfg.StoreName, shortID(order))
	return m.compose(user, subject, orderPlacedTmpl, m.mailData(user, order, ""))
}

func (m *Mailer) statusChangedMsg(user *model.User, order *model.Order, previous model.OrderStatus) (*mail.Msg, error) {
	subject := fmt.Sprintf("%s order %s is %s", m.cfg.StoreName, shortID(order), order.Status)
	return m.compose(user, subject, statusChangedTmpl, m.mailData(user, order, previous))
}

func (m *Mailer) mailData(user *model.User, order *model.Order, previous model.OrderStatus) orderMailData {
	return orderMailData{
		Name:          user.Name,
		OrderID:       order.ID.String(),
		Status:        order.Status,
		Previous:      previous,
		Items:         order.Items,
		Total:         order.TotalAmount.StringFixed(2),
		PaymentMethod: order.PaymentMethod,
		Address:       order.ShippingAddress,
		StoreName:     m.cfg.StoreName,
	}
}

func (m *Mailer) compose(user *model.User, subject string, tmpl *template.Template, data orderMailData) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(user.Email); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	if err := msg.SetBodyHTMLTemplate(tmpl, data); err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}
	return msg, nil
}

func (m *Mailer) send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(m.cfg.TLSPolicy)),
		mail.WithTimeout(15 * time.Second),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch s {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

func shortID(order *model.Order) string {
	return order.ID.String()[:8]
}
