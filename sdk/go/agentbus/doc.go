// Package agentbus provides in-process access to the coordination
// runtime for Go agent frameworks: publishing contract-checked events,
// subscribing to the ordered bus, opening approval gates, and replaying
// history.
//
// Usage:
//
//	ab, err := agentbus.New(agentbus.WithAgentID("researcher"))
//	id, err := ab.Publish(agentbus.TaskCompleted, agentbus.Payload{
//	    "status": "completed",
//	    "result": "summary written",
//	})
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/ppiankov/agentbus/sdk/go/agentbus.
package agentbus
