// Package mcp serves the agentic_query tool over the Model Context Protocol.
//
// The tool input mirrors agentic.Request and its structured output is the
// agentic.Result JSON. Requests the service refuses come back as tool
// errors (IsError) whose text starts with the error code, for example
// "invalid_request: invalid request: query is required".
package mcp
