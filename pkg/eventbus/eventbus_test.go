package eventbus

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/bops-digital/bops/pkg/logging"
)

type testEvent struct {
	data interface{}
}

func TestPublisher_Publish_NoSubscribersIsLogged(t *testing.T) {
	type otherEvent struct {
		data interface{}
	}
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *testEvent) {
		t.Error("should not be called")
	})
	publisher.Publish(&otherEvent{data: "test"})

	if output := logBuffer.String(); output == "" {
		t.Error("should have logged")
	} else if !strings.Contains(output, "eventbus.Publish: no matching subscribers") {
		t.Errorf("should have contained no matching subscribers but got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	called := false
	var data interface{}
	publisher.Subscribe(func(e *testEvent) {
		called = true
		data = e.data
	})
	publisher.Publish(&testEvent{data: "test"})
	if !called {
		t.Error("should be called")
	}
	if data != "test" {
		t.Errorf("expected: %v, got: %v", "test", data)
	}
}

func TestPublisher_PanickingHandlerDoesNotPropagate(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *testEvent) {
		panic("boom")
	})
	publisher.Publish(&testEvent{data: "test"})
	if !strings.Contains(logBuffer.String(), "panicked") {
		t.Errorf("expected panic to be logged, got: %q", logBuffer.String())
	}
}

func TestMatchSignature(t *testing.T) {
	type eventA struct{}
	type eventB struct{}
	if !MatchSignature(func(e *eventA) {}, []interface{}{&eventA{}}) {
		t.Error("expected true")
	}
	if MatchSignature(func(e *eventA) {}, []interface{}{&eventB{}}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *eventA) {}, []interface{}{}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *eventA) {}, []interface{}{&eventA{}, &eventA{}}) {
		t.Error("expected false")
	}
	if !MatchSignature(func(ctx context.Context) {}, []interface{}{context.Background()}) {
		t.Error("expected true")
	}
}

func TestPublisher_Clear(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	publisher.Subscribe(func(e *testEvent) {})
	if publisher.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Clear()
	if publisher.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
}
