package traffic

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitOrder(t *testing.T) {
	f := NewFeed(8)

	for i := 0; i < 5; i++ {
		f.Emit(Outbound, KindText, []byte(fmt.Sprintf("msg-%d", i)))
	}

	for i := 0; i < 5; i++ {
		m := <-f.Messages()
		assert.Equal(t, fmt.Sprintf("msg-%d", i), string(m.Payload))
	}
	assert.Zero(t, f.Dropped())
}

func TestEmitFields(t *testing.T) {
	f := NewFeed(1)
	m := f.Emit(Inbound, KindBinary, []byte{0x01})

	assert.NotEmpty(t, m.ID)
	assert.False(t, m.Time.IsZero())
	assert.Equal(t, Inbound, m.Direction)
	assert.Equal(t, KindBinary, m.Kind)

	got := <-f.Messages()
	assert.Equal(t, m.ID, got.ID)
}

func TestEmitDropsOldest(t *testing.T) {
	f := NewFeed(2)

	f.Emit(Inbound, KindText, []byte("first"))
	f.Emit(Inbound, KindText, []byte("second"))
	f.Emit(Inbound, KindText, []byte("third")) // nobody reading, "first" goes

	assert.Equal(t, int64(1), f.Dropped())

	m := <-f.Messages()
	assert.Equal(t, "second", string(m.Payload))
	m = <-f.Messages()
	assert.Equal(t, "third", string(m.Payload))
}

func TestEmitNeverBlocks(t *testing.T) {
	f := NewFeed(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			f.Emit(Outbound, KindText, []byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full feed")
	}

	require.GreaterOrEqual(t, f.Dropped(), int64(90))
}

func TestDefaultSize(t *testing.T) {
	f := NewFeed(0)
	assert.Equal(t, DefaultFeedSize, cap(f.ch))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "outbound", Outbound.String())
	assert.Equal(t, "inbound", Inbound.String())
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "binary", KindBinary.String())
	assert.Equal(t, "ping", KindPing.String())
}
