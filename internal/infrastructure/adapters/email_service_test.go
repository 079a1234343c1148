package adapters

import (
	"context"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"go.uber.org/zap/zaptest"
)

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	resp, _ := args.Get(0).(*rest.Response)
	return resp, args.Error(1)
}

func TestEmailService_MockModeWithoutKey(t *testing.T) {
	svc := NewEmailService(zaptest.NewLogger(t), EmailServiceConfig{Environment: "production"})
	assert.True(t, svc.MockMode())

	err := svc.SendDigest(context.Background(), "a@b.io", entities.Digest{Title: "Hi", Text: "body"})
	assert.NoError(t, err)
}

func TestEmailService_SendDigest(t *testing.T) {
	sender := new(MockMailSender)
	sender.On("SendWithContext", mock.Anything, mock.MatchedBy(func(m *mail.SGMailV3) bool {
		return m.Subject == "Daily summary" && len(m.Personalizations) == 1 &&
			m.Personalizations[0].To[0].Address == "a@b.io"
	})).Return(&rest.Response{StatusCode: 202}, nil)

	svc := NewEmailService(zaptest.NewLogger(t), EmailServiceConfig{APIKey: "k", FromEmail: "bot@x.io"})
	svc.client = sender

	err := svc.SendDigest(context.Background(), "a@b.io", entities.Digest{Title: "Daily summary", Text: "line1\nline2"})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestEmailService_ProviderError(t *testing.T) {
	sender := new(MockMailSender)
	sender.On("SendWithContext", mock.Anything, mock.Anything).Return(&rest.Response{StatusCode: 401, Body: "denied"}, nil)

	svc := NewEmailService(zaptest.NewLogger(t), EmailServiceConfig{APIKey: "k"})
	svc.client = sender

	err := svc.SendDigest(context.Background(), "a@b.io", entities.Digest{Text: "x"})
	assert.Error(t, err)
}

func TestDigestHTMLEscapes(t *testing.T) {
	out := digestHTML(entities.Digest{Title: "<b>", Text: "a\nb & c"})
	assert.Contains(t, out, "&lt;b&gt;")
	assert.Contains(t, out, "a<br>b &amp; c")
}
