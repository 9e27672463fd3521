// Package mqtt publishes and subscribes telemetry over MQTT.
package mqtt

import (
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// Queue wraps MQTT client. All topics are relative to TopicPrefix.
type Queue struct {
	Client      paho.Client
	TopicPrefix string

	lock sync.RWMutex
	subs map[string][]*Subscription
}

// Subscription is a subscribed topic pattern.
type Subscription struct {
	Token paho.Token

	queue   *Queue
	pattern string
	handler Handler
}

// MatchTopic matches topic with a pattern which may contain
// the wildcards + and #.
func MatchTopic(topic, pattern string) bool {
	tokensT, tokensP := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for i, token := range tokensP {
		if token == "#" && i+1 == len(tokensP) {
			return true
		}
		if i >= len(tokensT) {
			return false
		}
		if token != "+" && token != tokensT[i] {
			return false
		}
	}
	return len(tokensP) == len(tokensT)
}

// ClientOptionsFromURL creates ClientOptions from URL.
// The path of the URL is the topic prefix.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	server := u.Scheme
	switch server {
	case "", "mqtt":
		server = "tcp"
	case "mqtts":
		server = "ssl"
	}
	server += "://" + u.Host

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// NewQueue creates Queue.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.onConnect)
	options.SetConnectionLostHandler(q.onConnectionLost)
	q.Client = paho.NewClient(options)
	return q
}

// Connect creates a Queue from URL and connects it.
func Connect(brokerURL string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	q := NewQueue(opts, topicPrefix)
	token := q.Client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return q, nil
}

// Close implements io.Closer.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Sub subscribes a topic pattern.
func (q *Queue) Sub(pattern string, handler Handler) *Subscription {
	sub := &Subscription{queue: q, pattern: pattern, handler: handler}
	q.lock.Lock()
	if q.subs == nil {
		q.subs = make(map[string][]*Subscription)
	}
	first := len(q.subs[pattern]) == 0
	q.subs[pattern] = append(q.subs[pattern], sub)
	q.lock.Unlock()

	if first {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+pattern)
		sub.Token = q.Client.Subscribe(q.TopicPrefix+pattern, 0, q.dispatch)
	} else {
		sub.Token = &paho.DummyToken{}
	}
	return sub
}

// Pub publishes to a topic.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.Client.Publish(q.TopicPrefix+topic, 0, false, payload)
}

func (q *Queue) resubscribe() {
	filters := make(map[string]byte)
	q.lock.RLock()
	for pattern := range q.subs {
		filters[q.TopicPrefix+pattern] = 0
	}
	q.lock.RUnlock()
	if len(filters) > 0 {
		q.Client.SubscribeMultiple(filters, q.dispatch)
	}
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("mqtt connected")
	q.resubscribe()
}

func (q *Queue) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
}

func (q *Queue) dispatch(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	topic = topic[len(q.TopicPrefix):]
	glog.V(2).Infof("RCV %q", topic)
	var handlers []Handler
	q.lock.RLock()
	for pattern, subs := range q.subs {
		if MatchTopic(topic, pattern) {
			for _, sub := range subs {
				handlers = append(handlers, sub.handler)
			}
		}
	}
	q.lock.RUnlock()
	payload := msg.Payload()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// Close unsubscribes the handler.
func (s *Subscription) Close() error {
	q := s.queue
	q.lock.Lock()
	subs := q.subs[s.pattern]
	for i, sub := range subs {
		if sub == s {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	last := len(subs) == 0
	if last {
		delete(q.subs, s.pattern)
	} else {
		q.subs[s.pattern] = subs
	}
	q.lock.Unlock()
	if !last {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", s.pattern)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.pattern)
	token.Wait()
	return token.Error()
}
