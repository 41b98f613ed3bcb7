//go:build !linux

package core

func setThreadPriority(priority int) error {
	return nil
}
