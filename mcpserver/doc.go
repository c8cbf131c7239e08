// Package mcpserver exposes the probe as a Model Context Protocol tool.
//
// It is used when server.transport is "stdio" or "http" instead of the
// default one-shot run. The list_unavailable_names tool runs a full probe
// and answers with the report and the modules missing on the host.
package mcpserver
