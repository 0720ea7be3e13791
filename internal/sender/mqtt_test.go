package sender

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes. Methods not overridden panic through the
// nil embedded interface, which flags unexpected use.
type fakeClient struct {
	paho.Client

	mu           sync.Mutex
	messages     []published
	publishErr   error
	hang         bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newFakeToken(c.publishErr, !c.hang)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func TestMQTTTopics(t *testing.T) {
	tests := []struct {
		prefix, host, status, online string
	}{
		{"smartfan", "node1", "smartfan/node1/status", "smartfan/node1/online"},
		{"lab/fans/", "node1", "lab/fans/node1/status", "lab/fans/node1/online"},
		{"smartfan", "a/b+c#", "smartfan/a_b_c_/status", "smartfan/a_b_c_/online"},
		{"smartfan", "", "smartfan/unknown/status", "smartfan/unknown/online"},
	}
	for _, tt := range tests {
		status, online := mqttTopics(tt.prefix, tt.host)
		if status != tt.status || online != tt.online {
			t.Errorf("mqttTopics(%q, %q) = %q, %q", tt.prefix, tt.host, status, online)
		}
	}
}

func TestMQTTSender_PublishesRetainedStatus(t *testing.T) {
	client := &fakeClient{}
	status, online := mqttTopics("smartfan", "node1")
	s := newMQTTSender(client, status, online, 1, true)

	if err := s.Send(context.Background(), testCycle(50, 45)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := client.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(msgs))
	}
	m := msgs[0]
	if m.topic != "smartfan/node1/status" || m.qos != 1 || !m.retained {
		t.Errorf("unexpected publish: %+v", m)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(m.payload, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["speed"] != float64(50) {
		t.Errorf("expected speed 50, got %v", body["speed"])
	}
}

func TestMQTTSender_PublishError(t *testing.T) {
	client := &fakeClient{publishErr: errors.New("not connected")}
	s := newMQTTSender(client, "t/status", "t/online", 0, false)

	if err := s.Send(context.Background(), testCycle(20, 20)); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestMQTTSender_ContextCancelled(t *testing.T) {
	client := &fakeClient{hang: true}
	s := newMQTTSender(client, "t/status", "t/online", 1, true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Send(ctx, testCycle(20, 20)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMQTTSender_CloseAnnouncesOffline(t *testing.T) {
	client := &fakeClient{}
	s := newMQTTSender(client, "smartfan/node1/status", "smartfan/node1/online", 1, true)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = s.Close()

	msgs := client.sent()
	if len(msgs) != 1 || msgs[0].topic != "smartfan/node1/online" || string(msgs[0].payload) != "offline" {
		t.Errorf("expected one offline announcement, got %+v", msgs)
	}
	if !client.disconnected {
		t.Error("expected Disconnect")
	}
	if err := s.Send(context.Background(), testCycle(20, 20)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
