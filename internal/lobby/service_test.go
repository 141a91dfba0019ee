package lobby

import (
	"sync"

	"sudooom.bunker.lobby/internal/lock"
	"sudooom.bunker.lobby/internal/storage"
)

// capturePublisher 测试用事件收集器
type capturePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturePublisher) PublishRoomEvent(event string, roomID string, payload []byte) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.events...)
}

// newTestService 内存后端 + 进程内锁的协调器
func newTestService(opts Options) (*Service, *storage.MemoryStore, *capturePublisher) {
	store := storage.NewMemoryStore()
	events := &capturePublisher{}
	svc := NewService(store, lock.NewLocalLocker(), events, opts)
	return svc, store, events
}
