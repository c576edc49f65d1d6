// Package notify delivers short messages to students. Sending is
// fire-and-forget: callers inspect the Result only to log it and never make
// correctness depend on delivery. There is no retry.
package notify

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quetras_notifications_sent_total",
	Help: "Notifications sent, by channel and result.",
}, []string{"channel", "result"})

// Result reports the outcome of one send.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Sender delivers a notification to a student.
type Sender interface {
	Send(ctx context.Context, studentID, title, message string) Result
}

// Fanout sends to every sender and succeeds if at least one did.
type Fanout []Sender

// Send implements Sender.
func (f Fanout) Send(ctx context.Context, studentID, title, message string) Result {
	if len(f) == 0 {
		return Result{Success: false, Message: "no notification channel configured"}
	}
	var ok bool
	var msgs []string
	for _, s := range f {
		r := s.Send(ctx, studentID, title, message)
		ok = ok || r.Success
		if r.Message != "" {
			msgs = append(msgs, r.Message)
		}
	}
	return Result{Success: ok, Message: strings.Join(msgs, "; ")}
}

func record(channel string, r Result) Result {
	label := "ok"
	if !r.Success {
		label = "failed"
	}
	sentTotal.WithLabelValues(channel, label).Inc()
	return r
}
