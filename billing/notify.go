package billing

import "log"

// Notifier receives best-effort notifications strictly after a mutating
// operation has committed. A failing notifier never affects the reported
// outcome of the operation; the engine logs and moves on.
type Notifier interface {
	SettlementProcessed(studentID StudentID, result *ProcessResult) error
	BedSwitched(studentID StudentID, result *SwitchResult) error
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) SettlementProcessed(StudentID, *ProcessResult) error { return nil }
func (NopNotifier) BedSwitched(StudentID, *SwitchResult) error          { return nil }

// notifyAfterCommit isolates notifier failures from the caller.
func notifyAfterCommit(what string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("post-commit notification failed (%s): %v", what, err)
	}
}
