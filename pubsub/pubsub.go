package pubsub

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/morganhein/netsync/logger"
	"github.com/morganhein/netsync/schema"
)

// Subscribers are dropped messages rather than allowed to stall a session.
const queueLimit = 20

var log schema.Logger

type Publisher struct {
	source string
	s      map[int]chan schema.MessageEvent
	next   int
	mut    sync.RWMutex
}

type subscriber struct {
	s    map[int]chan schema.MessageEvent
	next int
	mut  sync.RWMutex
}

var sub subscriber

func init() {
	log = logger.Log
	sub = subscriber{
		s: make(map[int]chan schema.MessageEvent, 2),
	}
}

// New creates a publisher for one session. source names the device in every event.
func New(source string) *Publisher {
	return &Publisher{
		source: source,
		s:      make(map[int]chan schema.MessageEvent, 2),
	}
}

// Subscribe adds another listener to this pubsub, messages to be passed via the channel
// The id of this subscription is returned, which may be used to unsubscribe
func (p *Publisher) Subscribe(s chan schema.MessageEvent) (id int) {
	p.mut.Lock()
	defer p.mut.Unlock()
	id = p.next
	p.next++
	p.s[id] = s
	log.Debug("Subscribing from id ", id)
	return id
}

func (p *Publisher) Unsubscribe(id int) {
	log.Debug("Unsubscribing from id ", id)
	p.mut.Lock()
	defer p.mut.Unlock()
	delete(p.s, id)
}

// Publish hands the message to every local and global subscriber whose queue has room.
func (p *Publisher) Publish(dir schema.EventType, message string) {
	if p == nil {
		return
	}
	e := schema.MessageEvent{
		Source:  p.source,
		Message: message,
		Dir:     dir,
		Time:    time.Now(),
	}
	p.mut.RLock()
	for _, s := range p.s {
		offer(s, e)
	}
	p.mut.RUnlock()

	sub.mut.RLock()
	for _, s := range sub.s {
		offer(s, e)
	}
	sub.mut.RUnlock()
}

func offer(s chan schema.MessageEvent, e schema.MessageEvent) {
	if len(s) >= queueLimit {
		return
	}
	select {
	case s <- e:
	default:
	}
}

// Subscribe adds a listener for all publishers.
// This will be used for third party logging
func Subscribe(s chan schema.MessageEvent) (id int) {
	sub.mut.Lock()
	defer sub.mut.Unlock()
	id = sub.next
	sub.next++
	sub.s[id] = s
	return id
}

func Unsubscribe(id int) {
	sub.mut.Lock()
	defer sub.mut.Unlock()
	delete(sub.s, id)
}

// WriteTranscript copies events to w until events is closed.
func WriteTranscript(w io.Writer, events <-chan schema.MessageEvent) error {
	for e := range events {
		var prefix string
		switch e.Dir {
		case schema.Stdin:
			prefix = ">>"
		case schema.Stderr:
			prefix = "!!"
		default:
			prefix = "<<"
		}
		if _, err := fmt.Fprintf(w, "%s %s %s %q\n", e.Time.Format("15:04:05.000"), e.Source, prefix, e.Message); err != nil {
			return err
		}
	}
	return nil
}
