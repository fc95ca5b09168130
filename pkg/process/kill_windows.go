//go:build windows

package process

import "os/exec"

// killProcessTree keeps the default Kill on Windows. Grandchildren that
// hold the output pipes are bounded by outputGrace instead.
func killProcessTree(cmd *exec.Cmd) {}
