//go:build windows

package commands

import (
	"fmt"
	"os"
)

// stopProcess terminates the kvserver process on Windows. Force mode uses
// process.Kill(); graceful mode sends os.Interrupt.
func stopProcess(process *os.Process, pid int, force bool) error {
	var err error
	if force {
		fmt.Printf("killing process %d...\n", pid)
		err = process.Kill()
	} else {
		fmt.Printf("sending interrupt to process %d...\n", pid)
		err = process.Signal(os.Interrupt)
	}

	if err == os.ErrProcessDone {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("stop process: %w", err)
	}
	return nil
}
