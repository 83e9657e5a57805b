// Package notify sends best-effort user notifications.
package notify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fixitrock/rockdl/internal/utils"
)

// Notifier delivers a short message to the user.
type Notifier interface {
	Notify(title, body string) error
}

// Func adapts a plain function to Notifier.
type Func func(title, body string) error

// Notify calls f.
func (f Func) Notify(title, body string) error {
	return f(title, body)
}

// LogNotifier writes notifications to a zap logger. It is the fallback when
// no desktop integration is available.
type LogNotifier struct {
	Log *zap.Logger
}

// NewLogNotifier returns a LogNotifier on l, or on the debug logger when l is nil.
func NewLogNotifier(l *zap.Logger) *LogNotifier {
	if l == nil {
		l = utils.Logger()
	}
	return &LogNotifier{Log: l}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(title, body string) error {
	n.Log.Info("notification", zap.String("title", title), zap.String("body", body))
	return nil
}

// Nop drops every notification.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(string, string) error { return nil }

// Safe delivers a notification and swallows any error or panic.
func Safe(n Notifier, title, body string) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			utils.Debug("Notification panicked: %v", r)
		}
	}()
	if err := n.Notify(title, body); err != nil {
		utils.Debug("Notification failed: %v", fmt.Errorf("%s: %w", title, err))
	}
}
