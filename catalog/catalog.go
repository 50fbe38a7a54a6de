// Package catalog is the in-memory registry of Tools, Prompts, and
// Resources the Protocol Dispatcher routes against (spec.md §4.2).
package catalog

import (
	"context"
	"sort"
	"sync"
)

// Capability is a bitset tag on a Tool declaring which transports may
// expose it (spec.md §3 Catalog entries).
type Capability uint8

const (
	// Standard tools are visible on every transport.
	Standard Capability = 1 << iota
	// TextStreaming tools stream text chunks (SSE or WebSocket).
	TextStreaming
	// BinaryStreaming tools stream binary chunks (WebSocket only).
	BinaryStreaming
	// RequiresWebSocket tools cannot be invoked outside a WebSocket
	// connection at all, regardless of the other bits set.
	RequiresWebSocket
)

// Transport names the caller's transport, used to compute the allowed
// capability mask (spec.md §4.2).
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
	TransportWS    Transport = "ws"
)

// AllowedMask returns the capability bits visible on t.
func AllowedMask(t Transport) Capability {
	switch t {
	case TransportSSE:
		return Standard | TextStreaming
	case TransportWS:
		return Standard | TextStreaming | BinaryStreaming | RequiresWebSocket
	default: // stdio, http
		return Standard
	}
}

// Visible reports whether a tool with capability bits caps may be listed on
// transport t: it must be Standard, or have at least one bit that overlaps
// the transport's allowed mask.
func Visible(caps Capability, t Transport) bool {
	if caps&Standard != 0 {
		return true
	}
	return caps&AllowedMask(t) != 0
}

// ToolHandler invokes a registered tool with decoded arguments, returning
// the raw result to be wrapped in the MCP content envelope by the
// dispatcher.
type ToolHandler func(ctx context.Context, arguments map[string]interface{}) (interface{}, error)

// Tool is a registered callable procedure (spec.md §3 Catalog entries).
type Tool struct {
	Name             string
	Title            string
	Description      string
	InputSchema      interface{}
	OutputSchema     interface{}
	Icon             string
	Capabilities     Capability
	Handler          ToolHandler
	// EmitStructured forces structuredContent even without an OutputSchema.
	EmitStructured bool
}

// PromptHandler invokes a registered prompt with decoded arguments.
type PromptHandler func(ctx context.Context, arguments map[string]interface{}) (*PromptResult, error)

// PromptResult is the payload of a prompts/get response.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptMessage is one entry of a PromptResult.
type PromptMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// Prompt is a registered prompt template (spec.md §3 Catalog entries).
type Prompt struct {
	Name        string
	Title       string
	Description string
	Arguments   []PromptArgument
	Handler     PromptHandler
}

// PromptArgument describes one named input a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ResourceHandler resolves a registered resource's contents.
type ResourceHandler func(ctx context.Context, uri string) (*ResourceContent, error)

// ResourceContent is the payload of a resources/read response entry.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// Resource is a registered readable/subscribable entity (spec.md §3
// Catalog entries).
type Resource struct {
	Name        string
	Title       string
	Description string
	URI         string
	MimeType    string
	Handler     ResourceHandler
}

// Catalog is a read-mostly registry: entries are registered during startup
// (the "discovery collaborator" spec.md §1 places out of scope) and the
// sorted-by-name index is rebuilt lazily by the first listing call after a
// registration. Listing calls take the exclusive lock; lookups take the
// read lock.
type Catalog struct {
	mu sync.RWMutex

	tools     map[string]*Tool
	prompts   map[string]*Prompt
	resources map[string]*Resource

	toolNames     []string
	promptNames   []string
	resourceNames []string
	dirty         bool
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{
		tools:     make(map[string]*Tool),
		prompts:   make(map[string]*Prompt),
		resources: make(map[string]*Resource),
	}
}

// RegisterTool adds or replaces a tool entry.
func (c *Catalog) RegisterTool(t *Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[t.Name] = t
	c.dirty = true
}

// RegisterPrompt adds or replaces a prompt entry.
func (c *Catalog) RegisterPrompt(p *Prompt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts[p.Name] = p
	c.dirty = true
}

// RegisterResource adds or replaces a resource entry.
func (c *Catalog) RegisterResource(r *Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[r.Name] = r
	c.dirty = true
}

func (c *Catalog) rebuildLocked() {
	if !c.dirty {
		return
	}
	c.toolNames = sortedKeysTools(c.tools)
	c.promptNames = sortedKeysPrompts(c.prompts)
	c.resourceNames = sortedKeysResources(c.resources)
	c.dirty = false
}

func sortedKeysTools(m map[string]*Tool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysPrompts(m map[string]*Prompt) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysResources(m map[string]*Resource) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tools returns every registered tool visible on transport t, ordered by
// name.
func (c *Catalog) Tools(t Transport) []*Tool {
	c.mu.Lock()
	c.rebuildLocked()
	names := c.toolNames
	tools := c.tools
	c.mu.Unlock()

	out := make([]*Tool, 0, len(names))
	for _, n := range names {
		tool := tools[n]
		if Visible(tool.Capabilities, t) {
			out = append(out, tool)
		}
	}
	return out
}

// Prompts returns every registered prompt, ordered by name.
func (c *Catalog) Prompts() []*Prompt {
	c.mu.Lock()
	c.rebuildLocked()
	names := c.promptNames
	prompts := c.prompts
	c.mu.Unlock()

	out := make([]*Prompt, 0, len(names))
	for _, n := range names {
		out = append(out, prompts[n])
	}
	return out
}

// Resources returns every registered resource, ordered by name.
func (c *Catalog) Resources() []*Resource {
	c.mu.Lock()
	c.rebuildLocked()
	names := c.resourceNames
	resources := c.resources
	c.mu.Unlock()

	out := make([]*Resource, 0, len(names))
	for _, n := range names {
		out = append(out, resources[n])
	}
	return out
}

// LookupTool returns the tool registered under name, regardless of
// transport; the dispatcher separately rejects invocation when transport is
// incompatible.
func (c *Catalog) LookupTool(name string) (*Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// LookupPrompt returns the prompt registered under name.
func (c *Catalog) LookupPrompt(name string) (*Prompt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prompts[name]
	return p, ok
}

// LookupResource returns the resource registered under uri.
func (c *Catalog) LookupResource(uri string) (*Resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.resources {
		if r.URI == uri {
			return r, true
		}
	}
	return nil, false
}

// HasTools, HasPrompts, HasResources report whether initialize should
// advertise the corresponding capability (spec.md §4.1: "Capabilities are
// reported only for kinds that have at least one registered entry").
func (c *Catalog) HasTools() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools) > 0
}

func (c *Catalog) HasPrompts() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prompts) > 0
}

func (c *Catalog) HasResources() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resources) > 0
}
