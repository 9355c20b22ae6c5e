// Package toolhost is the client side of an MCP (Model Context Protocol)
// tool server. Dial starts the server as a subprocess (or connects to it
// over streamable HTTP or SSE) and performs the capability handshake;
// ListTools and CallTool then expose the server's tools by name.
//
// Failures come in two kinds. An *UnavailableError means the server or the
// session is gone and nothing further will work. An *ExecutionError is
// confined to one call.
package toolhost
