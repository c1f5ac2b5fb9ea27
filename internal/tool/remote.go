package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// RemoteClient is the enhanced-tool backend. Implementations are
// expected to fail with errors, never panic; the Layer turns errors
// into graceful fallback.
type RemoteClient interface {
	Connect(ctx context.Context) error
	Call(ctx context.Context, name string, params map[string]any) (any, error)
	Close() error
}

// MCPClient talks to an external MCP tool server over a stdio command
// transport.
type MCPClient struct {
	command []string
	session *mcpsdk.ClientSession
}

// NewMCPClient creates a client that will launch the given server
// command on Connect.
func NewMCPClient(command []string) *MCPClient {
	return &MCPClient{command: command}
}

// Connect launches the tool server and performs the MCP handshake.
func (c *MCPClient) Connect(ctx context.Context) error {
	if len(c.command) == 0 {
		return fmt.Errorf("mcp: no tool server command configured")
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "agentbus",
		Version: "0.1.0",
	}, nil)

	transport := &mcpsdk.CommandTransport{
		Command: exec.Command(c.command[0], c.command[1:]...),
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp: connect to tool server: %w", err)
	}
	c.session = session
	return nil
}

// Call invokes a remote tool and returns its decoded result.
func (c *MCPClient) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	if c.session == nil {
		return nil, fmt.Errorf("mcp: not connected")
	}

	res, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: params,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: call %q: %w", name, err)
	}
	if res.IsError {
		return nil, fmt.Errorf("mcp: tool %q returned error: %s", name, textContent(res))
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}

	text := textContent(res)
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded, nil
	}
	return text, nil
}

// Close shuts down the session and the tool server process.
func (c *MCPClient) Close() error {
	if c.session == nil {
		return nil
	}
	session := c.session
	c.session = nil
	return session.Close()
}

func textContent(res *mcpsdk.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
