package pump

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-game-demo/client/game/events"
	"council-game-demo/client/pkg/logger"
)

type recordingSink struct {
	mu      sync.Mutex
	chunks  map[string][]string
	sealed  map[string]events.StreamEnd
	sealOrd []string
	sealCh  chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		chunks: make(map[string][]string),
		sealed: make(map[string]events.StreamEnd),
		sealCh: make(chan string, 16),
	}
}

func (s *recordingSink) AppendChunk(actorKey, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[actorKey] = append(s.chunks[actorKey], chunk)
}

func (s *recordingSink) Seal(actorKey string, end events.StreamEnd) {
	s.mu.Lock()
	s.sealed[actorKey] = end
	s.sealOrd = append(s.sealOrd, actorKey)
	s.mu.Unlock()
	s.sealCh <- actorKey
}

func (s *recordingSink) text(actorKey string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.chunks[actorKey], "")
}

func (s *recordingSink) sealCount(actorKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.sealOrd {
		if k == actorKey {
			n++
		}
	}
	return n
}

func waitSeal(t *testing.T, sink *recordingSink, actorKey string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if sink.sealCount(actorKey) > 0 {
			return
		}
		select {
		case <-sink.sealCh:
		case <-deadline:
			t.Fatalf("timed out waiting for %s to seal", actorKey)
		}
	}
}

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

func TestPumpReleasesAllChunksInOrder(t *testing.T) {
	sink := newRecordingSink()
	p := New(time.Millisecond, 3, sink, testLogger())

	p.Start("c1")
	p.Push("c1", "The council ")
	p.Push("c1", "will decide.")
	p.Finish("c1", events.StreamEnd{CharacterID: "c1"})

	waitSeal(t, sink, "c1")
	assert.Equal(t, "The council will decide.", sink.text("c1"))
	assert.True(t, p.Idle())
}

func TestSealNeverPrecedesDrain(t *testing.T) {
	sink := newRecordingSink()
	p := New(time.Millisecond, 2, sink, testLogger())

	p.Start("c1")
	p.Push("c1", "abcdefghij")
	p.Finish("c1", events.StreamEnd{CharacterID: "c1", Content: "abcdefghij"})

	waitSeal(t, sink, "c1")
	// Every queued chunk was released before the seal fired.
	assert.Equal(t, "abcdefghij", sink.text("c1"))
	assert.Equal(t, 1, sink.sealCount("c1"))
}

func TestFinishOnDrainedQueueSealsImmediately(t *testing.T) {
	sink := newRecordingSink()
	p := New(time.Millisecond, 3, sink, testLogger())

	p.Start("c1")
	p.Finish("c1", events.StreamEnd{CharacterID: "c1", Content: "Short."})

	waitSeal(t, sink, "c1")
	end := func() events.StreamEnd {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.sealed["c1"]
	}()
	assert.Equal(t, "Short.", end.Content)
}

func TestTwoActorsPumpIndependently(t *testing.T) {
	sink := newRecordingSink()
	p := New(time.Millisecond, 4, sink, testLogger())

	p.Start("c1")
	p.Start("c2")
	p.Push("c1", "first speaker text")
	p.Push("c2", "second speaker text")
	p.Finish("c1", events.StreamEnd{CharacterID: "c1"})
	p.Finish("c2", events.StreamEnd{CharacterID: "c2"})

	waitSeal(t, sink, "c1")
	waitSeal(t, sink, "c2")
	assert.Equal(t, "first speaker text", sink.text("c1"))
	assert.Equal(t, "second speaker text", sink.text("c2"))
}

func TestPushWithoutStartOpensBuffer(t *testing.T) {
	sink := newRecordingSink()
	p := New(time.Millisecond, 3, sink, testLogger())

	p.Push("c9", "implicit")
	p.Finish("c9", events.StreamEnd{CharacterID: "c9"})

	waitSeal(t, sink, "c9")
	assert.Equal(t, "implicit", sink.text("c9"))
}

func TestStartDiscardsPriorBuffer(t *testing.T) {
	sink := newRecordingSink()
	p := New(50*time.Millisecond, 3, sink, testLogger())

	p.Start("c1")
	p.Push("c1", "stale text that must not seal")
	p.Start("c1")
	p.Push("c1", "ok")
	p.Finish("c1", events.StreamEnd{CharacterID: "c1"})

	waitSeal(t, sink, "c1")
	assert.Equal(t, 1, sink.sealCount("c1"))
	assert.Equal(t, "ok", sink.text("c1"))
}

func TestClearMakesNoSinkCalls(t *testing.T) {
	sink := newRecordingSink()
	p := New(10*time.Millisecond, 3, sink, testLogger())

	p.Start("c1")
	p.Push("c1", "about to vanish")
	p.Finish("c1", events.StreamEnd{CharacterID: "c1"})
	p.Clear()

	require.True(t, p.Idle())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, sink.sealCount("c1"))
}

func TestDrainedClosesImmediatelyWhenIdle(t *testing.T) {
	sink := newRecordingSink()
	p := New(time.Millisecond, 3, sink, testLogger())

	select {
	case <-p.Drained():
	case <-time.After(time.Second):
		t.Fatal("Drained did not close on an idle pump")
	}
}

func TestDrainedWaitsForBusyBuffers(t *testing.T) {
	sink := newRecordingSink()
	p := New(time.Millisecond, 2, sink, testLogger())

	p.Start("c1")
	p.Push("c1", "some text to drain")
	p.Finish("c1", events.StreamEnd{CharacterID: "c1"})

	select {
	case <-p.Drained():
	case <-time.After(2 * time.Second):
		t.Fatal("Drained never closed")
	}
	assert.True(t, p.Idle())
	assert.Equal(t, "some text to drain", sink.text("c1"))
}

func TestSplitChunksLatin(t *testing.T) {
	assert.Equal(t, []string{"abc", "def", "g"}, splitChunks("abcdefg", 3))
	assert.Nil(t, splitChunks("", 3))
}

func TestSplitChunksCJKPerCodePoint(t *testing.T) {
	chunks := splitChunks("議会は決定する", 3)
	assert.Equal(t, []string{"議", "会", "は", "決", "定", "す", "る"}, chunks)
}

func TestSplitChunksMixedTreatedAsCJK(t *testing.T) {
	chunks := splitChunks("a議b", 3)
	assert.Equal(t, []string{"a", "議", "b"}, chunks)
}

// gatedSink stalls each chunk delivery until the test releases it.
type gatedSink struct {
	inner   *recordingSink
	arrived chan string
	release chan struct{}
}

func (s *gatedSink) AppendChunk(actorKey, chunk string) {
	s.arrived <- chunk
	<-s.release
	s.inner.AppendChunk(actorKey, chunk)
}

func (s *gatedSink) Seal(actorKey string, end events.StreamEnd) {
	s.inner.Seal(actorKey, end)
}

func TestPumpDeliversChunkBeforeArmingNextTick(t *testing.T) {
	sink := &gatedSink{
		inner:   newRecordingSink(),
		arrived: make(chan string, 4),
		release: make(chan struct{}),
	}
	p := New(time.Millisecond, 4, sink, testLogger())

	p.Start("c1")
	p.Push("c1", "abcdefgh")

	first := <-sink.arrived
	require.Equal(t, "abcd", first)

	// Stall the first delivery well past several intervals: the second
	// chunk must not reach the sink while the first is in flight.
	select {
	case got := <-sink.arrived:
		t.Fatalf("chunk %q offered while previous chunk still in flight", got)
	case <-time.After(20 * time.Millisecond):
	}

	close(sink.release)
	require.Equal(t, "efgh", <-sink.arrived)

	p.Finish("c1", events.StreamEnd{CharacterID: "c1"})
	waitSeal(t, sink.inner, "c1")
	assert.Equal(t, "abcdefgh", sink.inner.text("c1"))
}
