package domain

import "strings"

// ToolCall represents a request from a Step to the host to perform a side-effect.
// Compatible with OpenAI/MCP tool call schemas.
type ToolCall struct {
	ID   string         `json:"id" yaml:"id" mapstructure:"id"`
	Name string         `json:"name" yaml:"name" mapstructure:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
}

// ContentType tags a ToolContent part.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentResource ContentType = "resource"
)

// ToolContent is one part of a tool result. Only the fields matching Type are set.
type ToolContent struct {
	Type     ContentType `json:"type" yaml:"type"`
	Text     string      `json:"text,omitempty" yaml:"text,omitempty"`
	Data     string      `json:"data,omitempty" yaml:"data,omitempty"`
	MimeType string      `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	URI      string      `json:"uri,omitempty" yaml:"uri,omitempty"`
}

// TextContent builds a text part.
func TextContent(text string) ToolContent {
	return ToolContent{Type: ContentText, Text: text}
}

// ToolResult represents the output of a side-effect returned by the host.
type ToolResult struct {
	ID      string        `json:"id" yaml:"id"` // Must match the ToolCall.ID
	Content []ToolContent `json:"content" yaml:"content"`
	IsError bool          `json:"is_error,omitempty" yaml:"is_error,omitempty"`
}

// Texts returns the text parts of the result, in order.
func (r ToolResult) Texts() []string {
	var out []string
	for _, c := range r.Content {
		if c.Type == ContentText {
			out = append(out, c.Text)
		}
	}
	return out
}

// Text joins the text parts with newlines.
func (r ToolResult) Text() string {
	return strings.Join(r.Texts(), "\n")
}

// Tool defines metadata about a tool available to a run.
type Tool struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}
