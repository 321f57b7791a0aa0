package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/quizroom/core"
)

func TestSendgridPrepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, nil).(*sendgridService)

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Ada Student", Address: "ada@example.com"}},
		Bcc:         []mail.Address{{Address: "audit@example.com"}},
		Subject:     "Welcome",
		TextContent: "hello",
	}
	if !assert.NoError(t, msg.Attach(strings.NewReader("hi"), "hi.txt")) {
		return
	}
	m := svc.prepare(msg)

	if assert.Len(t, m.Personalizations, 1) {
		p := m.Personalizations[0]
		assert.Equal(t, "["+conf.AppName+"] Welcome", p.Subject)
		assert.Equal(t, "ada@example.com", p.To[0].Address)
		assert.Equal(t, "audit@example.com", p.BCC[0].Address)
	}
	// no html part without html content
	assert.Len(t, m.Content, 1)
	if assert.Len(t, m.Attachments, 1) {
		assert.Equal(t, "hi.txt", m.Attachments[0].Filename)
		assert.Equal(t, "aGk=", m.Attachments[0].Content)
		assert.Equal(t, "text/plain; charset=utf-8", m.Attachments[0].Type)
	}
}
