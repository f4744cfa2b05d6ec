package pubsub

import (
	"bytes"
	"testing"

	"github.com/morganhein/netsync/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SubscribeAndPublish(t *testing.T) {
	p := New("10.0.0.1")
	a := make(chan schema.MessageEvent, 5)
	b := make(chan schema.MessageEvent, 5)

	ida := p.Subscribe(a)
	idb := p.Subscribe(b)
	assert.NotEqual(t, ida, idb)

	p.Publish(schema.Stdin, "show version")

	ea := <-a
	eb := <-b
	assert.Equal(t, "10.0.0.1", ea.Source)
	assert.Equal(t, "show version", ea.Message)
	assert.Equal(t, schema.Stdin, ea.Dir)
	assert.Equal(t, ea.Message, eb.Message)

	p.Unsubscribe(ida)
	p.Publish(schema.Stdout, "Router#")
	assert.Len(t, a, 0)
	assert.Len(t, b, 1)
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	p := New("r1")
	s := make(chan schema.MessageEvent, queueLimit+5)
	p.Subscribe(s)
	for i := 0; i < queueLimit+5; i++ {
		p.Publish(schema.Stdout, "x")
	}
	assert.Len(t, s, queueLimit)

	unbuffered := make(chan schema.MessageEvent)
	p.Subscribe(unbuffered)
	// must not block without a reader
	p.Publish(schema.Stdout, "y")
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher
	p.Publish(schema.Stdout, "ignored")
}

func TestGlobalSubscribe(t *testing.T) {
	s := make(chan schema.MessageEvent, 1)
	id := Subscribe(s)
	defer Unsubscribe(id)

	New("r2").Publish(schema.Stdout, "hello")
	e := <-s
	assert.Equal(t, "r2", e.Source)
}

func TestWriteTranscript(t *testing.T) {
	events := make(chan schema.MessageEvent, 3)
	p := New("r3")
	p.Subscribe(events)
	p.Publish(schema.Stdin, "enable")
	p.Publish(schema.Stdout, "Password: ")
	close(events)

	var out bytes.Buffer
	require.NoError(t, WriteTranscript(&out, events))
	assert.Contains(t, out.String(), `r3 >> "enable"`)
	assert.Contains(t, out.String(), `r3 << "Password: "`)
}
