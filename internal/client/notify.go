package client

// Severity classifies a user-facing notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

// Notification is a transient, user-visible toast. Failures never surface as
// blocking dialogs; the rendering layer shows these and lets them fade.
type Notification struct {
	Severity Severity
	Message  string
}

// Notifier receives notifications raised by the synchronization controller.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }
