package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=imgdataset", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier sends a desktop notification when a build finishes
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a new Notifier based on the current platform.
// Platforms without a sender only get console output.
func NewNotifier() *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}

	return &Notifier{sender: sender}
}

// NewNotifierWithSender creates a Notifier using sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// SendSuccess reports a finished build
func (n *Notifier) SendSuccess(title, message string) error {
	printf("\n%s: %s\n", Green(title), message)
	return n.send(title, message)
}

// SendError reports a failed build
func (n *Notifier) SendError(title, message string) error {
	fmt.Fprintf(Output(), "\n%s: %s\n", Red(title), message)
	return n.send(title, message)
}

func (n *Notifier) send(title, message string) error {
	if n.sender == nil {
		return nil
	}
	if err := n.sender.Send(title, message); err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	return nil
}
