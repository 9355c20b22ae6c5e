// Package agentloop drives a tool-using conversation between a chat model
// and an MCP tool server.
//
// The model is told about the available tools in its system prompt and asks
// for one by replying with a fenced JSON block:
//
//	```json
//	{"name": "search", "params": {"query": "..."}}
//	```
//
// ParseReply classifies each reply as a plain answer, a tool call, or a
// malformed call. The Session runs the tool, folds its result back into the
// conversation and asks the model to continue, until a reply carries the
// finish signal (DetectStatus). A final synthesis request then turns the
// accumulated tool results into the answer.
//
// If the model's reply is not a tool call, the session falls back to asking
// the bare query with no tool context and returns that answer instead.
//
// # Architecture
//
//   - Session: owns the tool registry and system prompt, serializes
//     queries, and runs the per-query state machine
//     (Init, AwaitingFirstReply, ToolLoop, Finishing, Done; Fallback,
//     Exhausted and Failed are terminal alternatives).
//   - ToolRegistry: the tools fetched once at Start.
//   - Conversation: the message list of one query.
//   - EventEmitter: typed event stream for host application integration.
//
// # Quick Start
//
//	tools, _ := toolhost.Dial(ctx, toolhost.Config{Transport: "python ./search_mcp.py"})
//	defer tools.Close()
//
//	session := agentloop.NewSession(client, tools, nil)
//	defer session.Close()
//	if err := session.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := session.Run(ctx, "What happened at the 2024 Olympics?")
//	if err != nil {
//	    log.Print(err)
//	}
//	fmt.Println(res.Answer)
package agentloop
