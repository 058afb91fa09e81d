package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/alpine-chat/internal/model"
)

type fakeStream struct {
	subject string
	data    []byte
	opts    int
	err     error
}

func (f *fakeStream) Publish(_ context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subject = subject
	f.data = data
	f.opts = len(opts)
	if f.err != nil {
		return nil, f.err
	}
	return &jetstream.PubAck{Stream: StreamName, Sequence: 1}, nil
}

func TestEventSubject(t *testing.T) {
	got := EventSubject("u1", "c1", model.EventExchangeCompleted)
	if got != "chat.u1.c1.exchange.completed" {
		t.Errorf("unexpected subject %q", got)
	}
	got = EventSubject("a.b", "*", model.EventConversationCreated)
	if got != "chat.a_b._.conversation.created" {
		t.Errorf("tokens not sanitized: %q", got)
	}
}

func TestPublisherPublish(t *testing.T) {
	fs := &fakeStream{}
	p := &Publisher{js: fs}
	event := &model.ConversationEvent{
		ID:             "e1",
		ConversationID: "c1",
		UserID:         "u1",
		Type:           model.EventConversationTitled,
		Metadata:       map[string]string{"title": "Mars"},
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fs.subject != "chat.u1.c1.conversation.titled" {
		t.Errorf("unexpected subject %q", fs.subject)
	}
	if fs.opts != 1 {
		t.Errorf("expected msg id option, got %d options", fs.opts)
	}
	var decoded model.ConversationEvent
	if err := json.Unmarshal(fs.data, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Metadata["title"] != "Mars" {
		t.Errorf("metadata lost: %+v", decoded)
	}

	fs.err = errors.New("no responders")
	if err := p.Publish(context.Background(), event); err == nil {
		t.Error("expected publish error")
	}
}
