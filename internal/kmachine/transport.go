// Package kmachine implements the k-machine transport (§4.6): a fixed
// roster of workers, procId-based routing, per-(sender,receiver) FIFO
// mailboxes, and the send/broadcast/scatterv primitives the GHS engine
// is built on.
package kmachine

// MachineOf routes a procId to its owning worker. Acknowledged weakness
// (§4.6, §9): plain modulo can skew load across workers; a universal hash
// would balance better but correctness does not depend on it, since
// ownership only needs to be a stable total function of procId.
func MachineOf(procId int64, machines int) int {
	m := procId % int64(machines)
	if m < 0 {
		m += int64(machines)
	}
	return int(m)
}

// Envelope is one queued delivery: a Message from one worker to another.
type Envelope struct {
	From int
	To   int
	Msg  Message
}

// Roster owns the K worker mailboxes. It is the only shared state in the
// engine; everything else is per-worker (§5).
type Roster struct {
	inboxes []chan Envelope
}

// NewRoster creates K FIFO mailboxes, each deep enough to never block a
// sender under the engine's own traffic patterns.
func NewRoster(k int) *Roster {
	r := &Roster{inboxes: make([]chan Envelope, k)}
	for i := range r.inboxes {
		r.inboxes[i] = make(chan Envelope, 1024)
	}
	return r
}

// K reports the roster size.
func (r *Roster) K() int {
	return len(r.inboxes)
}

func (r *Roster) deliver(env Envelope) {
	r.inboxes[env.To] <- env
}

func (r *Roster) inbox(i int) <-chan Envelope {
	return r.inboxes[i]
}

// WorkerContext is the per-worker handle onto the roster: "myself",
// "machines", and a send path, replacing the source's process-wide globals
// (§9, "process-wide globals -> passed context").
type WorkerContext struct {
	Myself   int
	Machines int
	roster   *Roster
}

// Send enqueues msg to machine i, FIFO relative to every other Send this
// worker makes to the same target.
func (wc *WorkerContext) Send(i int, msg Message) {
	wc.roster.deliver(Envelope{From: wc.Myself, To: i, Msg: msg})
}

// Broadcast sends msg to every machine, including self.
func (wc *WorkerContext) Broadcast(msg Message) {
	for i := 0; i < wc.Machines; i++ {
		wc.Send(i, msg)
	}
}

// Scatterv sends per-target tailored messages in one call.
func (wc *WorkerContext) Scatterv(msgv map[int]Message) {
	for to, msg := range msgv {
		wc.Send(to, msg)
	}
}

// DictScatterv fans out a handler's natural return shape: after processing
// one message, emit these message batches, keyed by kind then target.
func (wc *WorkerContext) DictScatterv(batches map[Kind]map[int]Message) {
	for _, msgv := range batches {
		wc.Scatterv(msgv)
	}
}
