package services

import (
	"testing"

	"chatterbox-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestRenderMails(t *testing.T) {
	body, err := renderOTPMail("<Alice>", "123456")
	require.NoError(t, err)
	assert.Contains(t, body, ">123456<")
	assert.Contains(t, body, "&lt;Alice&gt;")

	body, err = renderResetMail("Bob", "http://localhost:3000/auth/new-password?token=abc")
	require.NoError(t, err)
	assert.Contains(t, body, `href="http://localhost:3000/auth/new-password?token=abc"`)
}

func TestTLSPolicy(t *testing.T) {
	assert.Equal(t, mail.TLSMandatory, tlsPolicy("mandatory"))
	assert.Equal(t, mail.TLSOpportunistic, tlsPolicy("opportunistic"))
	assert.Equal(t, mail.NoTLS, tlsPolicy("none"))
}

func TestNewSMTPMailer(t *testing.T) {
	m, err := NewSMTPMailer(config.MailConfig{
		Host:      "smtp.example.com",
		Port:      587,
		Username:  "user",
		Password:  "pass",
		From:      "no-reply@example.com",
		TLSPolicy: "mandatory",
	})
	require.NoError(t, err)
	assert.Equal(t, "no-reply@example.com", m.from)
}
