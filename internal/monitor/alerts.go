package monitor

import "log"

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogSink writes alerts to the process log.
type LogSink struct{}

func (LogSink) Send(message string) error {
	log.Println("ALERT:", message)
	return nil
}
