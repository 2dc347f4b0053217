package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends backorder notices over SMTP. Used by the worker, never on
// the request path.
type Mailer struct {
	host string
	port int
	from string
	to   string
	send func(addr string, from string, to []string, msg []byte) error
}

// NewMailer builds Mailer.
func NewMailer(host string, port int, from, to string) *Mailer {
	return &Mailer{
		host: host,
		port: port,
		from: from,
		to:   to,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Send delivers one notice.
func (m *Mailer) Send(notice BackorderNotice) error {
	if m == nil || m.to == "" {
		return nil
	}
	subject := fmt.Sprintf("BACKORDER: %s x%d (%s)", orFallback(notice.ProductName, notice.SKU), notice.Quantity, notice.Location)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n", m.from, m.to, subject)
	fmt.Fprintf(&b, "Created:  %s\r\n", orFallback(notice.CreatedAt, "-"))
	fmt.Fprintf(&b, "Patient:  %s\r\n", orFallback(notice.PatientID, "-"))
	fmt.Fprintf(&b, "Product:  %s\r\n", orFallback(notice.ProductName, "-"))
	fmt.Fprintf(&b, "SKU:      %s\r\n", orFallback(notice.SKU, "-"))
	fmt.Fprintf(&b, "Qty:      %d\r\n", notice.Quantity)
	fmt.Fprintf(&b, "Location: %s\r\n", orFallback(notice.Location, "-"))
	fmt.Fprintf(&b, "Doctor:   %s\r\n", orFallback(notice.Doctor, "-"))
	fmt.Fprintf(&b, "Remarks:  %s\r\n", notice.Remarks)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := m.send(addr, m.from, []string{m.to}, []byte(b.String())); err != nil {
		return fmt.Errorf("send backorder mail: %w", err)
	}
	return nil
}

func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
