//go:build unix

package sshclient

import "syscall"

// ReplaceSupported reports whether the platform can replace the process image.
const ReplaceSupported = true

func replaceProcess(path string, argv, env []string) error {
	return syscall.Exec(path, argv, env)
}
