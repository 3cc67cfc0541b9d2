package hotkey

// Toggle turns presses of a Hotkey into play/stop toggles. One press is one
// toggle no matter how long the chord is held.
type Toggle struct {
	ch   chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewToggle(hk Hotkey) *Toggle {
	t := &Toggle{
		ch:   make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run(hk)
	return t
}

// C delivers one value per press. Presses made while a toggle is still
// unread are dropped.
func (t *Toggle) C() <-chan struct{} { return t.ch }

func (t *Toggle) Close() {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	<-t.done
}

func (t *Toggle) run(hk Hotkey) {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			return
		case <-hk.Keydown():
		}
		select {
		case t.ch <- struct{}{}:
		default:
		}
		select {
		case <-t.stop:
			return
		case <-hk.Keyup():
		}
	}
}
