package harvest

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/jobharvest/internal/model"
)

// NewRunID returns a fresh session identifier.
func NewRunID() string {
	return uuid.NewString()
}

type channelCounters struct {
	pages   atomic.Int64
	records atomic.Int64
	errors  atomic.Int64
}

// Session is the mutable state of one run.
type Session struct {
	runID     string
	criteria  model.SearchCriteria
	startedAt time.Time
	desired   int64

	reserved atomic.Int64
	saved    atomic.Int64
	pages    atomic.Int64
	errors   atomic.Int64

	// channels is filled once in newSession and only read afterwards.
	channels map[model.Channel]*channelCounters
}

func newSession(runID string, c model.SearchCriteria, startedAt time.Time) *Session {
	return &Session{
		runID:     runID,
		criteria:  c,
		startedAt: startedAt,
		desired:   int64(c.DesiredCount),
		channels: map[model.Channel]*channelCounters{
			model.ChannelAPI:  {},
			model.ChannelHTML: {},
		},
	}
}

// RunID returns the session identifier.
func (s *Session) RunID() string {
	return s.runID
}

// Reserve claims one result slot. It fails once the reserved count has
// reached the desired count.
func (s *Session) Reserve() bool {
	for {
		cur := s.reserved.Load()
		if cur >= s.desired {
			return false
		}
		if s.reserved.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release gives back a slot claimed by Reserve that will not be saved.
func (s *Session) Release() {
	s.reserved.Add(-1)
}

// Full reports whether every slot is reserved.
func (s *Session) Full() bool {
	return s.reserved.Load() >= s.desired
}

// Reserved returns the number of claimed slots, saved or in flight.
func (s *Session) Reserved() int {
	return int(s.reserved.Load())
}

// Saved returns the number of records written to the sink.
func (s *Session) Saved() int {
	return int(s.saved.Load())
}

// Remaining returns how many records are still wanted.
func (s *Session) Remaining() int {
	return max(0, int(s.desired-s.saved.Load()))
}

// Pages returns the number of non-empty pages fetched.
func (s *Session) Pages() int {
	return int(s.pages.Load())
}

// Errors returns the number of degradations recorded.
func (s *Session) Errors() int {
	return int(s.errors.Load())
}

func (s *Session) counters(ch model.Channel) *channelCounters {
	if c, ok := s.channels[ch]; ok {
		return c
	}
	return s.channels[model.ChannelHTML]
}

func (s *Session) addPage(ch model.Channel) {
	s.pages.Add(1)
	s.counters(ch).pages.Add(1)
}

func (s *Session) addSaved(ch model.Channel) {
	s.saved.Add(1)
	s.counters(ch).records.Add(1)
}

func (s *Session) addError(ch model.Channel) {
	s.errors.Add(1)
	s.counters(ch).errors.Add(1)
}

// summary snapshots the counters. Channels without activity are omitted.
func (s *Session) summary(now time.Time) model.Summary {
	sum := model.Summary{
		RunID:          s.runID,
		Criteria:       s.criteria,
		StartedAt:      s.startedAt,
		Elapsed:        now.Sub(s.startedAt),
		PagesProcessed: s.Pages(),
		RecordsSaved:   s.Saved(),
		Errors:         s.Errors(),
		Channels:       map[model.Channel]model.ChannelStats{},
	}
	for ch, c := range s.channels {
		st := model.ChannelStats{
			Pages:   int(c.pages.Load()),
			Records: int(c.records.Load()),
			Errors:  int(c.errors.Load()),
		}
		if st != (model.ChannelStats{}) {
			sum.Channels[ch] = st
		}
	}
	return sum
}
