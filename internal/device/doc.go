// Package device tracks attached devices and provides the gateway used to
// move files on and off them. Detection combines adaptive bridge polling
// with udev netlink nudges.
package device
