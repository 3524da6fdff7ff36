package broker

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{
		Ack:         "ack",
		Requeue:     "requeue",
		Reject:      "reject",
		Outcome(99): "unknown",
	}
	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", outcome, got, want)
		}
	}
}

func TestRetriesOfNoHeaders(t *testing.T) {
	d := amqp.Delivery{}
	if got := retriesOf(d); got != 0 {
		t.Errorf("retriesOf with nil headers = %d, want 0", got)
	}
}

func TestRetriesOfParsesIntTypes(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  int
	}{
		{"int64", int64(2), 2},
		{"int32", int32(3), 3},
		{"int", 4, 4},
		{"unsupported type", "not-a-number", 0},
	}
	for _, c := range cases {
		d := amqp.Delivery{Headers: amqp.Table{RetriesHeader: c.value}}
		if got := retriesOf(d); got != c.want {
			t.Errorf("%s: retriesOf() = %d, want %d", c.name, got, c.want)
		}
	}
}
