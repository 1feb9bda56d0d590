package smtp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestMailer_SendEmail(t *testing.T) {
	d := &fakeDialer{}
	m := &mailer{dialer: d, from: "noreply@zabira.app"}

	require.NoError(t, m.SendEmail("a@x.io", "Your code", "123456"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"a@x.io"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@zabira.app"}, d.sent[0].GetHeader("From"))

	var buf bytes.Buffer
	_, err := d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "123456")
}

func TestMailer_SendEmailError(t *testing.T) {
	m := &mailer{dialer: &fakeDialer{err: errors.New("421 try later")}, from: "noreply@zabira.app"}
	assert.ErrorContains(t, m.SendEmail("a@x.io", "s", "b"), "421 try later")
}
