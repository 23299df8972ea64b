package kmachine

import "sync"

// Supervisor sits outside the K workers, owns the roster, and exposes the
// waitUntilDone barrier satisfied once every worker has exited via bye.
type Supervisor struct {
	roster  *Roster
	workers []*worker
	wg      sync.WaitGroup
}

// NewSupervisor builds a roster of k workers and starts each one's loop.
// newHandler is called once per worker index to build that worker's
// message handler (it closes over that worker's own node/machine state).
func NewSupervisor(k int, newHandler func(myself int) Handler) *Supervisor {
	s := &Supervisor{
		roster:  NewRoster(k),
		workers: make([]*worker, k),
	}
	for i := 0; i < k; i++ {
		wc := &WorkerContext{Myself: i, Machines: k, roster: s.roster}
		s.workers[i] = newWorker(wc, s.roster.inbox(i), newHandler(i))
	}
	s.wg.Add(k)
	for _, w := range s.workers {
		w := w
		go func() {
			defer s.wg.Done()
			w.run()
		}()
	}
	return s
}

// Send delivers msg to machine i from outside the roster (e.g. the
// controller kicking off phase 0).
func (s *Supervisor) Send(i int, msg Message) {
	s.roster.deliver(Envelope{From: -1, To: i, Msg: msg})
}

// Broadcast delivers msg to every machine.
func (s *Supervisor) Broadcast(msg Message) {
	for i := 0; i < s.roster.K(); i++ {
		s.Send(i, msg)
	}
}

// K reports the roster size.
func (s *Supervisor) K() int {
	return s.roster.K()
}

// WaitUntilDone blocks until every worker has received bye and exited.
// Bounded only by algorithm termination (§5); no explicit timeout.
func (s *Supervisor) WaitUntilDone() {
	s.wg.Wait()
}
