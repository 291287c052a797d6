package dashboard

import (
	"sync"
	"time"
)

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a transient notification shown to the operator.
type Toast struct {
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier delivers toasts. Views call it outside their locks.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// NopNotifier discards toasts.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// ToastRecorder collects toasts, e.g. to render them with a page.
type ToastRecorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *ToastRecorder) Success(message string) { r.add(ToastSuccess, message) }
func (r *ToastRecorder) Error(message string)   { r.add(ToastError, message) }

func (r *ToastRecorder) add(kind ToastKind, message string) {
	r.mu.Lock()
	r.toasts = append(r.toasts, Toast{Kind: kind, Message: message, At: time.Now()})
	r.mu.Unlock()
}

// Toasts returns a copy of everything recorded so far.
func (r *ToastRecorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Success(message string) {
	f(Toast{Kind: ToastSuccess, Message: message, At: time.Now()})
}

func (f NotifierFunc) Error(message string) {
	f(Toast{Kind: ToastError, Message: message, At: time.Now()})
}
