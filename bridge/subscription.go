package bridge

// Subscription is a registered listener.
type Subscription struct {
	id        string
	hub       *Hub
	done      <-chan struct{}
	stopWatch func() bool
}

// ID returns the listener id producers address events to.
func (s *Subscription) ID() string { return s.id }

// Done is closed once the listener has been removed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Remove unregisters the listener. It is safe to call more than once and
// from inside the listener's own handler.
func (s *Subscription) Remove() {
	s.stopWatch()
	s.hub.Remove(s.id)
}
