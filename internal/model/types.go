package model

import "fmt"

// DefaultPort is the port assigned to a profile when the caller does not supply one.
const DefaultPort uint16 = 60022

// HostProfile is one named SSH connection profile stored in the registry.
//
// Password holds the obscured form produced by internal/secret, never plaintext.
// A nil Password means the host relies on key-based or agent authentication.
type HostProfile struct {
	Name     string  `json:"name"`
	Hostname string  `json:"hostname"`
	Port     uint16  `json:"port"`
	Username string  `json:"username"`
	Password *string `json:"password,omitempty"`
}

// HasPassword reports whether an obscured password is stored for the host.
func (h HostProfile) HasPassword() bool {
	return h.Password != nil
}

// Address returns user@host:port for display.
func (h HostProfile) Address() string {
	return fmt.Sprintf("%s@%s:%d", h.Username, h.Hostname, h.Port)
}
