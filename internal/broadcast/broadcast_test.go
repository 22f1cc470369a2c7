package broadcast

import (
	"testing"
	"time"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(Event{WorkflowID: 1, EntityKind: "job", Operation: "create", Summary: "job-1"})

	select {
	case evt := <-sub.Events():
		if evt.EntityKind != "job" || evt.Summary != "job-1" {
			t.Errorf("received = %+v, want job/job-1", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestPublishOnlyReachesMatchingWorkflow(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(Event{WorkflowID: 2, EntityKind: "job", Operation: "create", Summary: "other-workflow"})

	select {
	case evt := <-sub.Events():
		t.Fatalf("subscriber for workflow 1 should not receive workflow 2's event, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsOldestWhenBufferFull(t *testing.T) {
	bus := New(2)
	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(Event{WorkflowID: 1, Summary: "first"})
	bus.Publish(Event{WorkflowID: 1, Summary: "second"})
	bus.Publish(Event{WorkflowID: 1, Summary: "third"})

	first := <-sub.Events()
	second := <-sub.Events()
	if first.Summary != "second" || second.Summary != "third" {
		t.Errorf("got %q, %q; want oldest (\"first\") dropped leaving second/third", first.Summary, second.Summary)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe(1)
	sub.Close()

	bus.Publish(Event{WorkflowID: 1, Summary: "after-close"})

	_, ok := <-sub.Events()
	if ok {
		t.Error("expected channel to be closed after Close()")
	}
}
