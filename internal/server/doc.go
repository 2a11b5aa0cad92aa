// Package server implements the HTTP and WebSocket surface of the chat server.
//
// The implementation is organized into specialized files for configuration,
// the wire protocol, hub management, clients, uploads, routing, and HTTP
// handlers. Chat semantics live in package chat; this package only moves
// frames between sockets and the chat engine.
package server
