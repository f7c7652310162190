package event

import (
	"sync"

	"go.uber.org/zap"
)

type listener struct {
	eventType Type
	channel   chan interface{}
}

// Manager fans checkout progress events out to registered listeners. One
// instance per application session, injected where needed.
type Manager struct {
	mu        sync.RWMutex
	listeners []*listener
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddListener(eventType Type, callback func(msg interface{})) {
	zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: AddListener")

	l := &listener{
		eventType: eventType,
		channel:   make(chan interface{}),
	}

	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()

	go func() {
		for msg := range l.channel {
			callback(msg)
		}
	}()
}

func (m *Manager) Emit(eventType Type, msg interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.listeners {
		if l.eventType == eventType {
			go func(handler chan interface{}) {
				handler <- msg
			}(l.channel)
		}
	}
}
