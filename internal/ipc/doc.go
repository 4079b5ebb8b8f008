// Package ipc provides JSON-RPC daemon control over a Unix domain socket.
// The CLI is the only intended client; the wire types are still versioned
// loosely through field names so older CLIs degrade gracefully.
package ipc
