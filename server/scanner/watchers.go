package scanner

import (
	"github.com/vizcount/vizcount/pkg/gen"
)

const WatcherChannelSize = 100

// Number of recent events that we remember for the status API
const recentEventsSize = 16

// AddWatcher registers to receive every Event that the resolver produces
func (s *Scanner) AddWatcher() chan *Event {
	s.watchersLock.Lock()
	defer s.watchersLock.Unlock()
	ch := make(chan *Event, WatcherChannelSize)
	s.watchers = append(s.watchers, ch)
	return ch
}

// Unregister from events
func (s *Scanner) RemoveWatcher(ch chan *Event) {
	s.watchersLock.Lock()
	defer s.watchersLock.Unlock()
	for i, w := range s.watchers {
		if w == ch {
			s.watchers = gen.DeleteFromSliceUnordered(s.watchers, i)
			return
		}
	}
	s.Log.Warnf("Scanner.RemoveWatcher failed to find channel")
}

func (s *Scanner) sendToWatchers(ev *Event) {
	s.watchersLock.Lock()
	s.recentEvents.Add(*ev)
	for _, ch := range s.watchers {
		if len(ch) >= cap(ch)*9/10 {
			// Never block the resolver on a slow consumer
			s.Log.Warnf("Scanner watcher is falling behind. I am going to drop events.")
			continue
		}
		ch <- ev
	}
	s.watchersLock.Unlock()
}

// RecentEvents returns the most recent events, oldest first
func (s *Scanner) RecentEvents() []Event {
	s.watchersLock.Lock()
	defer s.watchersLock.Unlock()
	out := make([]Event, 0, s.recentEvents.Len())
	for i := 0; i < s.recentEvents.Len(); i++ {
		out = append(out, s.recentEvents.Peek(i))
	}
	return out
}
