// Package dispatch распределяет обновления Telegram по воркерам так,
// что события одного чата обрабатываются строго по порядку.
package dispatch

import (
	"log"
	"sync"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// HandlerFunc обрабатывает одно обновление.
type HandlerFunc func(update tgbotapi.Update)

// Dispatcher держит фиксированное число воркеров, у каждого своя очередь.
// Чат всегда попадает в одну и ту же очередь.
type Dispatcher struct {
	handle  HandlerFunc
	queues  []chan tgbotapi.Update
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// New запускает workers воркеров с очередями длины buffer.
func New(workers, buffer int, handle HandlerFunc) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		handle: handle,
		queues: make([]chan tgbotapi.Update, workers),
	}
	for i := range d.queues {
		d.queues[i] = make(chan tgbotapi.Update, buffer)
		d.wg.Add(1)
		go d.work(i)
	}
	return d
}

func (d *Dispatcher) work(idx int) {
	defer d.wg.Done()
	for update := range d.queues[idx] {
		d.safeHandle(idx, update)
	}
}

func (d *Dispatcher) safeHandle(idx int, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Dispatcher: воркер %d: паника при обработке обновления %d: %v", idx, update.UpdateID, r)
		}
	}()
	d.handle(update)
}

// Dispatch ставит обновление в очередь его чата. После Stop возвращает false.
// Блокируется, если очередь чата заполнена.
func (d *Dispatcher) Dispatch(update tgbotapi.Update) bool {
	chatID, ok := ChatID(update)
	if !ok {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	d.queues[d.slot(chatID)] <- update
	return true
}

func (d *Dispatcher) slot(chatID int64) int {
	return int(uint64(chatID) % uint64(len(d.queues)))
}

// Stop перестает принимать обновления, дожидается обработки уже поставленных.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// ChatID определяет чат обновления: сообщение или нажатие кнопки.
func ChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	}
	return 0, false
}
