// Package chat implements the connection, presence and room broadcast engine
// of the chat server.
//
// The package is transport-agnostic: connections are referenced by ConnID and
// every outbound event is handed to a Transport for delivery. The shared
// registries (CredentialStore, PresenceRegistry, RoomDirectory, MessageLog)
// are owned by an Engine, which serializes the cross-registry updates that a
// single connection event triggers.
package chat
