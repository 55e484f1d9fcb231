package services

import (
	"bytes"
	"testing"
	"time"

	"civiceye/internal/config"
	"civiceye/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func TestMailServiceDisabledWithoutSMTP(t *testing.T) {
	s := NewMailService(&config.Config{SMTPHost: "smtp.example.com"})
	assert.False(t, s.Enabled)

	// Must not panic or block.
	s.SendStatusEmail("a@example.com", &models.Grievance{}, &models.Notification{})
}

func TestSendStatusEmail(t *testing.T) {
	sent := make(chan *gomail.Message, 1)
	s := &MailService{
		from:    "noreply@city.gov",
		Enabled: true,
		send: func(m *gomail.Message) error {
			sent <- m
			return nil
		},
	}

	g := &models.Grievance{Title: "Broken streetlight", Category: models.CategoryStreetlight, Location: "<b>Elm St</b>"}
	n := BuildStatusNotification(&models.Grievance{Title: g.Title, Status: models.StatusResolved})
	s.SendStatusEmail("resident@example.com", g, n)

	select {
	case m := <-sent:
		assert.Equal(t, []string{"resident@example.com"}, m.GetHeader("To"))
		assert.Equal(t, []string{"[CivicEye] Grievance resolved"}, m.GetHeader("Subject"))

		var buf bytes.Buffer
		_, err := m.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Broken streetlight")
		assert.NotContains(t, buf.String(), "<b>Elm St</b>")
	case <-time.After(2 * time.Second):
		t.Fatal("email was not sent")
	}
}
