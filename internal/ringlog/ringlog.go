// Package ringlog — потокобезопасный кольцевой журнал фиксированной емкости.
// Заменяет паттерн «append + отрезать голову»: вытеснение старейшего элемента
// выполняется за O(1), без реаллокаций на горячем пути.
package ringlog

import "sync"

type Log[T any] struct {
	mu   sync.RWMutex
	buf  []T
	head int // Индекс старейшего элемента
	size int
}

func New[T any](capacity int) *Log[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log[T]{buf: make([]T, capacity)}
}

// Append добавляет запись, вытесняя старейшую при переполнении (FIFO)
func (l *Log[T]) Append(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.buf) {
		l.buf[(l.head+l.size)%len(l.buf)] = item
		l.size++
		return
	}

	// Буфер полон: пишем поверх головы и сдвигаем её
	l.buf[l.head] = item
	l.head = (l.head + 1) % len(l.buf)
}

func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Snapshot возвращает копию содержимого от старейшего к новейшему.
// Читатели (тренды, история) работают со снапшотом и не блокируют писателей.
func (l *Log[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]T, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	return out
}

// Filter возвращает записи, прошедшие предикат, в хронологическом порядке
func (l *Log[T]) Filter(keep func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []T
	for i := 0; i < l.size; i++ {
		item := l.buf[(l.head+i)%len(l.buf)]
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
