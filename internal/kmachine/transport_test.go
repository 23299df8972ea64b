package kmachine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMachineOfIsStableAndNonNegative(t *testing.T) {
	for _, procId := range []int64{0, 1, 7, 1000, 2_147_483_646} {
		m := MachineOf(procId, 4)
		require.GreaterOrEqual(t, m, 0)
		require.Less(t, m, 4)
		require.Equal(t, m, MachineOf(procId, 4), "routing must be deterministic")
	}
}

func TestMachineOfDistributesAcrossRoster(t *testing.T) {
	seen := map[int]bool{}
	for procId := int64(0); procId < 8; procId++ {
		seen[MachineOf(procId, 4)] = true
	}
	require.Len(t, seen, 4)
}

// TestFIFOPerSenderReceiver exercises the per-(sender,receiver) ordering
// guarantee for one sender: messages the supervisor sends to worker 1
// arrive in submission order.
func TestFIFOPerSenderReceiver(t *testing.T) {
	const k = 3
	var mu sync.Mutex
	var receivedAt1 []int64

	done := make(chan struct{})
	sup := NewSupervisor(k, func(myself int) Handler {
		return func(wc *WorkerContext, from int, msg Message) {
			if myself != 1 {
				return
			}
			mu.Lock()
			receivedAt1 = append(receivedAt1, msg.Edge.Weight)
			mu.Unlock()
			if len(receivedAt1) == 5 {
				close(done)
			}
		}
	})

	for i := int64(1); i <= 5; i++ {
		sup.Send(1, Message{Kind: FindMOE, Edge: Edge{Weight: i}})
	}

	<-done
	sup.Broadcast(Message{Kind: Bye})
	sup.WaitUntilDone()

	require.Equal(t, []int64{1, 2, 3, 4, 5}, receivedAt1)
}

// TestByeStopsWorkerCleanly: once a worker receives bye, it processes no
// further queued messages.
func TestByeStopsWorkerCleanly(t *testing.T) {
	const k = 1
	var mu sync.Mutex
	processed := 0

	sup := NewSupervisor(k, func(myself int) Handler {
		return func(wc *WorkerContext, from int, msg Message) {
			mu.Lock()
			processed++
			mu.Unlock()
		}
	})

	sup.Send(0, Message{Kind: Bye})
	sup.Send(0, Message{Kind: FindMOE})
	sup.WaitUntilDone()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, processed)
}

func TestBroadcastReachesEveryWorker(t *testing.T) {
	const k = 4
	var mu sync.Mutex
	count := 0
	done := make(chan struct{})

	sup := NewSupervisor(k, func(myself int) Handler {
		return func(wc *WorkerContext, from int, msg Message) {
			if msg.Kind != Summarize {
				return
			}
			mu.Lock()
			count++
			c := count
			mu.Unlock()
			if c == k {
				close(done)
			}
		}
	})

	sup.Broadcast(Message{Kind: Summarize})
	<-done
	sup.Broadcast(Message{Kind: Bye})
	sup.WaitUntilDone()
}
