package apply

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

func testRec() domain.Recommendation {
	return domain.Recommendation{
		ID:         "r1",
		Agent:      domain.AgentPricing,
		Type:       domain.RecPriceChangeExecuted,
		ProductID:  "P1",
		Text:       "Raise P1 to 115.00",
		Confidence: 0.9,
		Impact:     domain.LevelHigh,
		Urgency:    domain.LevelHigh,
	}
}

func TestEmailNotifier_Apply_SendsMessage(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Host: "mail", Port: 25, From: "agents@shop.test", To: []string{"ops@shop.test", "cfo@shop.test"}})
	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, n.Apply(context.Background(), testRec()))
	assert.Equal(t, "mail:25", gotAddr)
	assert.Equal(t, []string{"ops@shop.test", "cfo@shop.test"}, gotTo)
	assert.Contains(t, gotMsg, "To: ops@shop.test, cfo@shop.test\r\n")
	assert.Contains(t, gotMsg, "Subject: [high] price_change_executed applied for P1\r\n")
	assert.Contains(t, gotMsg, "Raise P1 to 115.00")
}

func TestEmailNotifier_Apply_NoRecipients(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Host: "localhost", Port: 1025})
	err := n.Apply(context.Background(), testRec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipients")
}

func TestEmailNotifier_Apply_SendError(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Host: "localhost", Port: 1025, To: []string{"ops@shop.test"}})
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay denied") }

	err := n.Apply(context.Background(), testRec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay denied")
}

func TestEmailNotifier_Apply_CancelledContext(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Host: "localhost", Port: 1025, To: []string{"ops@shop.test"}})
	release := make(chan struct{})
	defer close(release)
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Apply(ctx, testRec())
	require.ErrorIs(t, err, context.Canceled)
}
