// Package dispatcher implements the Protocol Dispatcher (spec.md §4.1): it
// decodes one envelope, routes it to a catalog entry or reserved method,
// applies the transport capability filter, runs lifecycle hooks around
// user-defined procedure invocations, and wraps results in the MCP
// envelope.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonrpc "github.com/viant/mcpgateway"
	"github.com/viant/mcpgateway/catalog"
	"github.com/viant/mcpgateway/hooks"
	"github.com/viant/mcpgateway/pagination"
	"github.com/viant/mcpgateway/router"
	"github.com/viant/mcpgateway/subscription"
	"github.com/viant/mcpgateway/transport"
	"github.com/viant/mcpgateway/transport/server/base"
)

// ServerInfo is reported by initialize (spec.md §4.1).
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Deps bundles the collaborators shared by every Dispatcher on an endpoint.
type Deps struct {
	Catalog         *catalog.Catalog
	Hooks           *hooks.Runner
	Subscriptions   *subscription.Registry
	Router          *router.Router
	ServerInfo      ServerInfo
	ProtocolVersion string // reported by initialize; defaults to jsonrpc.DefaultProtocolVersion
}

// Dispatcher is a transport.Handler bound to one session/connection and one
// transport kind (stdio, http, sse, ws), constructed by NewFactory.
type Dispatcher struct {
	deps      Deps
	transport catalog.Transport
	peer      transport.Transport
}

// NewFactory returns a transport.NewHandler that constructs a Dispatcher
// scoped to transportKind for every new session on that endpoint.
func NewFactory(deps Deps, transportKind catalog.Transport) transport.NewHandler {
	if deps.ProtocolVersion == "" {
		deps.ProtocolVersion = jsonrpc.DefaultProtocolVersion
	}
	return func(ctx context.Context, peer transport.Transport) transport.Handler {
		return &Dispatcher{deps: deps, transport: transportKind, peer: peer}
	}
}

// Serve implements transport.Handler.
func (d *Dispatcher) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Jsonrpc = jsonrpc.Version
	response.Id = request.Id

	result, rpcErr := d.route(ctx, request)
	if rpcErr != nil {
		response.Error = rpcErr
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		response.Error = jsonrpc.NewInternalError(request.Id, err, nil)
		return
	}
	response.Result = data
}

// OnNotification implements transport.Handler. Inbound notifications from
// the peer (e.g. "notifications/initialized") require no action from the
// engine; they are accepted and discarded.
func (d *Dispatcher) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {}

func (d *Dispatcher) route(ctx context.Context, request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	switch request.Method {
	case MethodInitialize:
		return d.initialize(), nil
	case MethodToolsList:
		return d.listTools(request)
	case MethodPromptsList:
		return d.listPrompts(request)
	case MethodResourcesList:
		return d.listResources(request)
	case MethodToolsCall:
		return d.callTool(ctx, request)
	case MethodPromptsGet:
		return d.getPrompt(ctx, request)
	case MethodResourcesRead:
		return d.readResource(ctx, request)
	case MethodResourcesSubscribe:
		return d.subscribe(ctx, request)
	case MethodResourcesUnsubscribe:
		return d.unsubscribe(ctx, request)
	default:
		return d.directInvoke(ctx, request)
	}
}

type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	ServerInfo      ServerInfo             `json:"serverInfo"`
	Capabilities    initializeCapabilities `json:"capabilities"`
}

type initializeCapabilities struct {
	Tools         map[string]interface{} `json:"tools,omitempty"`
	Prompts       map[string]interface{} `json:"prompts,omitempty"`
	Resources     map[string]interface{} `json:"resources,omitempty"`
	Notifications map[string]interface{} `json:"notifications,omitempty"`
}

func (d *Dispatcher) initialize() *initializeResult {
	caps := initializeCapabilities{}
	notif := map[string]interface{}{}
	if d.deps.Catalog.HasTools() {
		caps.Tools = map[string]interface{}{}
		notif["tools"] = map[string]interface{}{}
	}
	if d.deps.Catalog.HasPrompts() {
		caps.Prompts = map[string]interface{}{}
		notif["prompts"] = map[string]interface{}{}
	}
	if d.deps.Catalog.HasResources() {
		caps.Resources = map[string]interface{}{}
		notif["resources"] = map[string]interface{}{}
	}
	if len(notif) > 0 {
		caps.Notifications = notif
	}
	return &initializeResult{
		ProtocolVersion: d.deps.ProtocolVersion,
		ServerInfo:      d.deps.ServerInfo,
		Capabilities:    caps,
	}
}

type listParams struct {
	Cursor   string `json:"cursor"`
	PageSize int    `json:"pageSize"`
}

func parseListParams(request *jsonrpc.Request) listParams {
	var p listParams
	if len(request.Params) > 0 {
		_ = json.Unmarshal(request.Params, &p)
	}
	return p
}

type toolDescriptor struct {
	Name         string      `json:"name"`
	Title        string      `json:"title,omitempty"`
	Description  string      `json:"description,omitempty"`
	InputSchema  interface{} `json:"inputSchema,omitempty"`
	OutputSchema interface{} `json:"outputSchema,omitempty"`
	Icon         string      `json:"icon,omitempty"`
}

func (d *Dispatcher) listTools(request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	p := parseListParams(request)
	tools := d.deps.Catalog.Tools(d.transport)
	descriptors := make([]toolDescriptor, len(tools))
	for i, t := range tools {
		descriptors[i] = toolDescriptor{
			Name: t.Name, Title: t.Title, Description: t.Description,
			InputSchema: t.InputSchema, OutputSchema: t.OutputSchema, Icon: t.Icon,
		}
	}
	page := pagination.Paginate(descriptors, p.Cursor, p.PageSize)
	return struct {
		Tools      []toolDescriptor `json:"tools"`
		NextCursor string           `json:"nextCursor,omitempty"`
	}{Tools: page.Items, NextCursor: page.NextCursor}, nil
}

type promptDescriptor struct {
	Name        string                   `json:"name"`
	Title       string                   `json:"title,omitempty"`
	Description string                   `json:"description,omitempty"`
	Arguments   []catalog.PromptArgument `json:"arguments,omitempty"`
}

func (d *Dispatcher) listPrompts(request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	p := parseListParams(request)
	prompts := d.deps.Catalog.Prompts()
	descriptors := make([]promptDescriptor, len(prompts))
	for i, pr := range prompts {
		descriptors[i] = promptDescriptor{Name: pr.Name, Title: pr.Title, Description: pr.Description, Arguments: pr.Arguments}
	}
	page := pagination.Paginate(descriptors, p.Cursor, p.PageSize)
	return struct {
		Prompts    []promptDescriptor `json:"prompts"`
		NextCursor string             `json:"nextCursor,omitempty"`
	}{Prompts: page.Items, NextCursor: page.NextCursor}, nil
}

type resourceDescriptor struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URI         string `json:"uri"`
	MimeType    string `json:"mimeType,omitempty"`
}

func (d *Dispatcher) listResources(request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	p := parseListParams(request)
	resources := d.deps.Catalog.Resources()
	descriptors := make([]resourceDescriptor, len(resources))
	for i, r := range resources {
		descriptors[i] = resourceDescriptor{Name: r.Name, Title: r.Title, Description: r.Description, URI: r.URI, MimeType: r.MimeType}
	}
	page := pagination.Paginate(descriptors, p.Cursor, p.PageSize)
	return struct {
		Resources  []resourceDescriptor `json:"resources"`
		NextCursor string               `json:"nextCursor,omitempty"`
	}{Resources: page.Items, NextCursor: page.NextCursor}, nil
}

type toolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content           []content   `json:"content"`
	StructuredContent interface{} `json:"structuredContent,omitempty"`
	IsError           bool        `json:"isError,omitempty"`
}

func (d *Dispatcher) callTool(ctx context.Context, request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	var p toolCallParams
	if err := json.Unmarshal(request.Params, &p); err != nil || p.Name == "" {
		return nil, jsonrpc.NewInvalidParams(request.Id, fmt.Errorf("missing required params.name"), nil)
	}
	tool, ok := d.deps.Catalog.LookupTool(p.Name)
	if !ok {
		return nil, jsonrpc.NewMethodNotFound(request.Id, fmt.Errorf("tool %q not found", p.Name), nil)
	}
	if tool.Capabilities&catalog.RequiresWebSocket != 0 && d.transport != catalog.TransportWS {
		return nil, jsonrpc.NewMethodNotFound(request.Id, fmt.Errorf("tool %q requires streaming not supported over %s", p.Name, d.transport), nil)
	}

	started := time.Now()
	if err := d.deps.Hooks.Invoking(ctx, MethodToolsCall, p.Name, request); err != nil {
		return nil, jsonrpc.NewInternalError(request.Id, err, nil)
	}

	result, err := tool.Handler(ctx, p.Arguments)
	duration := time.Since(started)
	if err != nil {
		d.deps.Hooks.Failed(ctx, MethodToolsCall, p.Name, err, duration)
		return nil, jsonrpc.NewInvalidParams(request.Id, err, nil)
	}

	text, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return nil, jsonrpc.NewInternalError(request.Id, marshalErr, nil)
	}
	out := &toolCallResult{Content: []content{{Type: "text", Text: string(text)}}}
	if tool.OutputSchema != nil || tool.EmitStructured {
		out.StructuredContent = result
	}
	response := &jsonrpc.Response{Id: request.Id, Jsonrpc: jsonrpc.Version}
	d.deps.Hooks.Completed(ctx, MethodToolsCall, p.Name, response, duration)
	return out, nil
}

type promptGetParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (d *Dispatcher) getPrompt(ctx context.Context, request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	var p promptGetParams
	if err := json.Unmarshal(request.Params, &p); err != nil || p.Name == "" {
		return nil, jsonrpc.NewInvalidParams(request.Id, fmt.Errorf("missing required params.name"), nil)
	}
	prompt, ok := d.deps.Catalog.LookupPrompt(p.Name)
	if !ok {
		return nil, jsonrpc.NewMethodNotFound(request.Id, fmt.Errorf("prompt %q not found", p.Name), nil)
	}
	started := time.Now()
	if err := d.deps.Hooks.Invoking(ctx, MethodPromptsGet, p.Name, request); err != nil {
		return nil, jsonrpc.NewInternalError(request.Id, err, nil)
	}
	result, err := prompt.Handler(ctx, p.Arguments)
	duration := time.Since(started)
	if err != nil {
		d.deps.Hooks.Failed(ctx, MethodPromptsGet, p.Name, err, duration)
		return nil, jsonrpc.NewInvalidParams(request.Id, err, nil)
	}
	response := &jsonrpc.Response{Id: request.Id, Jsonrpc: jsonrpc.Version}
	d.deps.Hooks.Completed(ctx, MethodPromptsGet, p.Name, response, duration)
	return result, nil
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

func (d *Dispatcher) readResource(ctx context.Context, request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	var p resourceReadParams
	if err := json.Unmarshal(request.Params, &p); err != nil || p.URI == "" {
		return nil, jsonrpc.NewInvalidParams(request.Id, fmt.Errorf("missing required params.uri"), nil)
	}
	resource, ok := d.deps.Catalog.LookupResource(p.URI)
	if !ok {
		return nil, jsonrpc.NewInvalidParams(request.Id, fmt.Errorf("resource %q not registered", p.URI), nil)
	}
	started := time.Now()
	if err := d.deps.Hooks.Invoking(ctx, MethodResourcesRead, p.URI, request); err != nil {
		return nil, jsonrpc.NewInternalError(request.Id, err, nil)
	}
	result, err := resource.Handler(ctx, p.URI)
	duration := time.Since(started)
	if err != nil {
		d.deps.Hooks.Failed(ctx, MethodResourcesRead, p.URI, err, duration)
		return nil, jsonrpc.NewInvalidParams(request.Id, err, nil)
	}
	response := &jsonrpc.Response{Id: request.Id, Jsonrpc: jsonrpc.Version}
	d.deps.Hooks.Completed(ctx, MethodResourcesRead, p.URI, response, duration)
	return struct {
		Contents []*catalog.ResourceContent `json:"contents"`
	}{Contents: []*catalog.ResourceContent{result}}, nil
}

type subscribeParams struct {
	URI string `json:"uri"`
}

func (d *Dispatcher) sessionID(ctx context.Context) string {
	if v := ctx.Value(jsonrpc.SessionKey); v != nil {
		if sess, ok := v.(*base.Session); ok {
			return sess.Id
		}
	}
	return ""
}

func (d *Dispatcher) sessionOf(ctx context.Context) (*base.Session, bool) {
	v := ctx.Value(jsonrpc.SessionKey)
	if v == nil {
		return nil, false
	}
	sess, ok := v.(*base.Session)
	return sess, ok
}

func (d *Dispatcher) subscribe(ctx context.Context, request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	var p subscribeParams
	if err := json.Unmarshal(request.Params, &p); err != nil || p.URI == "" {
		return nil, jsonrpc.NewInvalidParams(request.Id, fmt.Errorf("missing required params.uri"), nil)
	}
	sess, ok := d.sessionOf(ctx)
	if !ok {
		return nil, jsonrpc.NewInvalidRequest(request.Id, fmt.Errorf("resources/subscribe requires a session"), nil)
	}
	if _, found := d.deps.Catalog.LookupResource(p.URI); !found {
		return nil, jsonrpc.NewInvalidParams(request.Id, fmt.Errorf("resource %q not registered", p.URI), nil)
	}
	d.deps.Subscriptions.Subscribe(p.URI, sess.Id)
	sess.Subscriptions.Add(p.URI)
	return struct{}{}, nil
}

func (d *Dispatcher) unsubscribe(ctx context.Context, request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	var p subscribeParams
	if err := json.Unmarshal(request.Params, &p); err != nil || p.URI == "" {
		return nil, jsonrpc.NewInvalidParams(request.Id, fmt.Errorf("missing required params.uri"), nil)
	}
	sess, ok := d.sessionOf(ctx)
	if !ok {
		return nil, jsonrpc.NewInvalidRequest(request.Id, fmt.Errorf("resources/unsubscribe requires a session"), nil)
	}
	d.deps.Subscriptions.Unsubscribe(p.URI, sess.Id)
	sess.Subscriptions.Remove(p.URI)
	return struct{}{}, nil
}

// directInvoke implements the spec.md §9 Open Question path: an unknown
// method is matched against a tool, then a prompt, then a resource by exact
// name, in that tie-break order. Treated as optional conformance (DESIGN.md).
func (d *Dispatcher) directInvoke(ctx context.Context, request *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	if tool, ok := d.deps.Catalog.LookupTool(request.Method); ok {
		var args map[string]interface{}
		_ = json.Unmarshal(request.Params, &args)
		result, err := tool.Handler(ctx, args)
		if err != nil {
			return nil, jsonrpc.NewInvalidParams(request.Id, err, nil)
		}
		return result, nil
	}
	if prompt, ok := d.deps.Catalog.LookupPrompt(request.Method); ok {
		var args map[string]interface{}
		_ = json.Unmarshal(request.Params, &args)
		result, err := prompt.Handler(ctx, args)
		if err != nil {
			return nil, jsonrpc.NewInvalidParams(request.Id, err, nil)
		}
		return result, nil
	}
	for _, resource := range d.deps.Catalog.Resources() {
		if resource.Name != request.Method {
			continue
		}
		result, err := resource.Handler(ctx, resource.URI)
		if err != nil {
			return nil, jsonrpc.NewInvalidParams(request.Id, err, nil)
		}
		return result, nil
	}
	return nil, jsonrpc.NewMethodNotFound(request.Id, fmt.Errorf("method %q not found", request.Method), nil)
}
