package dispatch

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/event"
	"github.com/tradeloop/tradeloop/log"
)

// ParseTopic splits s on the topic separator
func ParseTopic(s string) (Topic, error) {
	if s == "" {
		return nil, ErrInvalidTopic
	}
	segs := strings.Split(s, event.TopicSeparator)
	for x := range segs {
		if segs[x] == "" {
			return nil, fmt.Errorf("%w: empty segment %d in %q", ErrInvalidTopic, x, s)
		}
	}
	return Topic(segs), nil
}

// Matches reports whether the pattern t matches the concrete topic
func (t Topic) Matches(topic Topic) bool {
	if len(t) != len(topic) {
		return false
	}
	for x := range t {
		if t[x] != Wildcard && t[x] != topic[x] {
			return false
		}
	}
	return true
}

// String implements the stringer interface
func (t Topic) String() string {
	return strings.Join(t, event.TopicSeparator)
}

// NewRouter returns an empty router
func NewRouter() *Router {
	return &Router{
		subs:  make(map[uuid.UUID]*subscription),
		cache: make(map[string][]*subscription),
	}
}

// Subscribe registers h for every topic matching pattern and returns the
// subscription id
func (r *Router) Subscribe(pattern string, h Handler, priority int) (uuid.UUID, error) {
	if r == nil {
		return uuid.Nil, errRouterNil
	}
	if h == nil {
		return uuid.Nil, errNilHandler
	}
	p, err := ParseTopic(pattern)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	r.m.Lock()
	defer r.m.Unlock()
	r.seq++
	s := &subscription{id: id, pattern: p, handler: h, priority: priority, seq: r.seq, active: true}
	r.subs[id] = s
	r.ordered = append(r.ordered, s)
	slices.SortStableFunc(r.ordered, func(a, b *subscription) int {
		if c := cmp.Compare(b.priority, a.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	clear(r.cache)
	log.Debugf(log.Dispatch, "subscription %s registered for %s priority %d", id, p, priority)
	return id, nil
}

// Unsubscribe removes a subscription. Unknown or already removed ids are
// ignored
func (r *Router) Unsubscribe(id uuid.UUID) error {
	if r == nil {
		return errRouterNil
	}
	if id.IsNil() {
		return errIDNotSet
	}
	r.m.Lock()
	defer r.m.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil
	}
	s.active = false
	delete(r.subs, id)
	r.ordered = slices.DeleteFunc(r.ordered, func(o *subscription) bool { return o.id == id })
	clear(r.cache)
	return nil
}

// Publish delivers e to every subscriber matching topic and returns the
// number of handlers invoked. Handler errors do not stop delivery to later
// subscribers; they are joined into the returned error. Handlers may
// subscribe and unsubscribe while being invoked
func (r *Router) Publish(topic string, e event.Event) (int, error) {
	if r == nil {
		return 0, errRouterNil
	}
	if e.IsZero() {
		return 0, common.ErrNilEvent
	}
	subs, err := r.match(topic)
	if err != nil {
		return 0, err
	}
	var (
		errs      []error
		delivered int
	)
	for _, s := range subs {
		r.m.RLock()
		active := s.active
		r.m.RUnlock()
		if !active {
			continue
		}
		delivered++
		if err := s.handler(e); err != nil {
			errs = append(errs, err)
		}
	}
	return delivered, errors.Join(errs...)
}

// PublishEvent publishes e on its own topic
func (r *Router) PublishEvent(e event.Event) (int, error) {
	return r.Publish(e.Topic(), e)
}

func (r *Router) match(topic string) ([]*subscription, error) {
	r.m.RLock()
	subs, ok := r.cache[topic]
	r.m.RUnlock()
	if ok {
		return subs, nil
	}
	t, err := ParseTopic(topic)
	if err != nil {
		return nil, err
	}
	if slices.Contains(t, Wildcard) {
		return nil, fmt.Errorf("%w: %s", errWildcardTopic, topic)
	}
	r.m.Lock()
	defer r.m.Unlock()
	subs = nil
	for _, s := range r.ordered {
		if s.pattern.Matches(t) {
			subs = append(subs, s)
		}
	}
	r.cache[topic] = subs
	return subs, nil
}

// Subscribers returns how many subscriptions match topic
func (r *Router) Subscribers(topic string) int {
	subs, err := r.match(topic)
	if err != nil {
		return 0
	}
	return len(subs)
}

// Len returns the number of active subscriptions
func (r *Router) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.subs)
}
