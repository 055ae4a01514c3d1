package common

import "errors"

// ErrModulePaused is returned when a module-wide administrative pause is in
// effect for the target module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module is administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects commands for paused modules. A nil view or empty module name
// disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
