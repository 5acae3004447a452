package nats_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-pricing-agents/internal/bus"
	pnats "github.com/ramiqadoumi/go-pricing-agents/internal/nats"
)

func startServer(t *testing.T) string {
	t.Helper()
	s, err := natssrv.NewServer(&natssrv.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(s.Shutdown)
	return s.ClientURL()
}

func TestForwarder_PublishesOnPrefixedSubject(t *testing.T) {
	url := startServer(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	s, err := sub.ChanSubscribe("shop.>", msgs)
	require.NoError(t, err)
	defer func() { _ = s.Unsubscribe() }()
	require.NoError(t, sub.Flush())

	f, err := pnats.Connect(url, "shop", "test")
	require.NoError(t, err)

	err = f.Forward(context.Background(), bus.Message{
		Topic:   "bundle_update",
		Payload: map[string]any{"bundle_id": "b1"},
		Sender:  "DynamicBundlerAgent",
	})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case m := <-msgs:
		assert.Equal(t, "shop.bundle_update", m.Subject)
		assert.Equal(t, "DynamicBundlerAgent", m.Header.Get("Sender"))

		var decoded bus.Message
		require.NoError(t, json.Unmarshal(m.Data, &decoded))
		assert.Equal(t, "bundle_update", decoded.Topic)
		assert.Equal(t, map[string]any{"bundle_id": "b1"}, decoded.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestForwarder_DefaultPrefix(t *testing.T) {
	f := pnats.NewForwarder(nil, "")
	assert.Equal(t, "pricing.price_update", f.Subject("price_update"))
	assert.Equal(t, "nats", f.Name())
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := pnats.Connect("nats://127.0.0.1:1", "", "test")
	require.Error(t, err)
}
