package services

import (
	"bytes"
	"html/template"

	"civiceye/internal/config"
	"civiceye/internal/logger"
	"civiceye/internal/models"

	"gopkg.in/gomail.v2"
)

var statusEmailTemplate = template.Must(template.New("status").Parse(`<p>Hello,</p>
<p>{{.Message}}</p>
<p><strong>Grievance:</strong> {{.Title}}<br>
<strong>Category:</strong> {{.Category}}<br>
<strong>Location:</strong> {{.Location}}</p>
<p>CivicEye</p>`))

type MailService struct {
	from    string
	Enabled bool
	send    func(m *gomail.Message) error
}

func NewMailService(cfg *config.Config) *MailService {
	enabled := cfg.SMTPHost != "" && cfg.SMTPUser != "" && cfg.SMTPPass != "" && cfg.SMTPFrom != ""
	if !enabled {
		logger.Log.Warn("MailService disabled: missing SMTP configuration")
		return &MailService{}
	}

	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	return &MailService{
		from:    cfg.SMTPFrom,
		Enabled: true,
		send:    func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

func (s *MailService) sendAsync(to, subject, body string) {
	if !s.Enabled {
		return
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, "CivicEye")
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	go func() {
		entry := logger.Log.WithField("to", to)
		if err := s.send(m); err != nil {
			entry.WithError(err).Error("Failed to send email")
			return
		}
		entry.WithField("subject", subject).Info("Email sent")
	}()
}

// SendStatusEmail implements StatusMailer.
func (s *MailService) SendStatusEmail(to string, g *models.Grievance, n *models.Notification) {
	if !s.Enabled {
		return
	}

	var buf bytes.Buffer
	err := statusEmailTemplate.Execute(&buf, map[string]string{
		"Message":  n.Message,
		"Title":    g.Title,
		"Category": string(g.Category),
		"Location": g.Location,
	})
	if err != nil {
		logger.Log.WithError(err).Error("Error rendering status email")
		return
	}
	s.sendAsync(to, "[CivicEye] "+n.Title, buf.String())
}
