// Package notify is the fire-and-forget user notification surface used
// for conflict prompts and transient sync messages.
package notify

import "doc-sync-engine/internal/pkg/logger"

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Action is a labeled choice attached to a notification, e.g. the
// keep-remote / keep-local pair on a conflict prompt.
type Action struct {
	Label  string
	Invoke func()
}

type Notification struct {
	Kind    Kind
	Message string
	Actions []Action
}

type INotifier interface {
	Notify(n Notification)
}

// LoggerNotifier writes notifications to the engine log. The daemon uses
// it when no UI surface is attached.
type LoggerNotifier struct {
	logger logger.ILogger
}

func NewLoggerNotifier(log logger.ILogger) *LoggerNotifier {
	return &LoggerNotifier{logger: log}
}

func (n *LoggerNotifier) Notify(notification Notification) {
	details := map[string]interface{}{"kind": string(notification.Kind)}
	if len(notification.Actions) > 0 {
		labels := make([]string, 0, len(notification.Actions))
		for _, a := range notification.Actions {
			labels = append(labels, a.Label)
		}
		details["actions"] = labels
	}
	switch notification.Kind {
	case KindWarning:
		n.logger.Warn("Notify", notification.Message, details)
	case KindError:
		n.logger.Error("Notify", notification.Message, details)
	default:
		n.logger.Info("Notify", notification.Message, details)
	}
}
