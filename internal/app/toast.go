package app

import (
	"time"

	"github.com/gigmarket/gigmarket/internal/models"
	"github.com/google/uuid"
)

// ShowToast queues a transient message and returns its id.
func (a *App) ShowToast(message string, kind models.ToastKind) string {
	switch kind {
	case models.ToastInfo, models.ToastSuccess, models.ToastAlert:
	default:
		kind = models.ToastInfo
	}
	t := models.Toast{ID: uuid.NewString(), Message: message, Kind: kind}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.toasts = append(a.toasts, t)
	if a.toastTTL > 0 {
		a.toastTimers[t.ID] = time.AfterFunc(a.toastTTL, func() { a.DismissToast(t.ID) })
	}
	return t.ID
}

// DismissToast removes the toast with id. Unknown ids are ignored.
func (a *App) DismissToast(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if timer, ok := a.toastTimers[id]; ok {
		timer.Stop()
		delete(a.toastTimers, id)
	}
	for i, t := range a.toasts {
		if t.ID == id {
			a.toasts = append(a.toasts[:i], a.toasts[i+1:]...)
			return
		}
	}
}
