package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"quant-core/internal/events"
)

// Monitor watches task transitions on the bus and forwards failures
// to an alert sink.
type Monitor struct {
	Bus     *events.Bus
	AlertFn func(string)
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.AlertFn == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(events.EventTaskState, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				if s, failed := failedTask(msg); failed {
					m.AlertFn(formatAlert(s))
				}
			}
		}
	}()
}

func failedTask(msg any) (string, bool) {
	p, ok := msg.(events.TaskStatePayload)
	if !ok || p.State != "failed" {
		return "", false
	}
	return fmt.Sprintf("task %s failed: %s", p.Task, p.Error), true
}

func formatAlert(msg string) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + msg
}
