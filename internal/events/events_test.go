package events

import (
	"reflect"
	"testing"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	var topic Topic[int]
	var got []string

	topic.Subscribe(func(v int) { got = append(got, "a") })
	topic.Subscribe(func(v int) { got = append(got, "b") })
	topic.Subscribe(func(v int) { got = append(got, "c") })

	topic.Publish(1)

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("delivery order: got %v, want %v", got, want)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	var topic Topic[string]
	var got []string

	unsub := topic.Subscribe(func(v string) { got = append(got, "first:"+v) })
	topic.Subscribe(func(v string) { got = append(got, "second:"+v) })

	topic.Publish("one")
	unsub()
	topic.Publish("two")
	unsub() // second call is a no-op

	want := []string{"first:one", "second:one", "second:two"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestClearDropsAllSubscribers(t *testing.T) {
	var topic Topic[struct{}]
	calls := 0

	topic.Subscribe(func(struct{}) { calls++ })
	topic.Subscribe(func(struct{}) { calls++ })

	topic.Clear()
	topic.Publish(struct{}{})

	if calls != 0 {
		t.Fatalf("cleared topic still delivered %d calls", calls)
	}
}

func TestSubscribeDuringPublishTakesEffectNextPublish(t *testing.T) {
	var topic Topic[int]
	calls := 0

	topic.Subscribe(func(v int) {
		if v == 1 {
			topic.Subscribe(func(int) { calls++ })
		}
	})

	topic.Publish(1)
	if calls != 0 {
		t.Fatalf("late subscriber saw the publish it was added during")
	}
	topic.Publish(2)
	if calls != 1 {
		t.Fatalf("late subscriber missed the next publish, calls=%d", calls)
	}
}
