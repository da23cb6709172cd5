package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestKafkaHeaderCarrier_SetAndGet(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("value1")}}
	carrier := NewHeaderCarrier(&headers)

	if got := carrier.Get("existing"); got != "value1" {
		t.Errorf("Get(existing) = %q, want %q", got, "value1")
	}
	if got := carrier.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}

	carrier.Set("new-key", "new-value")
	if got := carrier.Get("new-key"); got != "new-value" {
		t.Errorf("Get(new-key) = %q, want %q", got, "new-value")
	}

	carrier.Set("existing", "updated")
	if got := carrier.Get("existing"); got != "updated" {
		t.Errorf("Get(existing) after update = %q, want %q", got, "updated")
	}
	if len(headers) != 2 {
		t.Errorf("len(headers) = %d, want 2 (overwrite must not append)", len(headers))
	}
}

func TestKafkaHeaderCarrier_Keys(t *testing.T) {
	headers := []kafka.Header{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}
	keys := NewHeaderCarrier(&headers).Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
}

func TestKafkaHeaderCarrier_EmptyHeaders(t *testing.T) {
	headers := []kafka.Header{}
	carrier := NewHeaderCarrier(&headers)

	if keys := carrier.Keys(); len(keys) != 0 {
		t.Errorf("Keys() on empty headers = %d, want 0", len(keys))
	}
	if got := carrier.Get("anything"); got != "" {
		t.Errorf("Get on empty headers = %q, want empty", got)
	}
}
