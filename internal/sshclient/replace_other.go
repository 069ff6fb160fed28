//go:build !unix

package sshclient

import "errors"

// ReplaceSupported reports whether the platform can replace the process image.
const ReplaceSupported = false

func replaceProcess(string, []string, []string) error {
	return errors.ErrUnsupported
}
