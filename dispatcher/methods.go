package dispatcher

// Reserved MCP method names (spec.md §2 component 9, §4.1).
const (
	MethodInitialize           = "initialize"
	MethodToolsList            = "tools/list"
	MethodToolsCall            = "tools/call"
	MethodPromptsList          = "prompts/list"
	MethodPromptsGet           = "prompts/get"
	MethodResourcesList        = "resources/list"
	MethodResourcesRead        = "resources/read"
	MethodResourcesSubscribe   = "resources/subscribe"
	MethodResourcesUnsubscribe = "resources/unsubscribe"
)

func isReserved(method string) bool {
	switch method {
	case MethodInitialize, MethodToolsList, MethodToolsCall,
		MethodPromptsList, MethodPromptsGet,
		MethodResourcesList, MethodResourcesRead,
		MethodResourcesSubscribe, MethodResourcesUnsubscribe:
		return true
	}
	return false
}
