package tool

import "context"

// ToolDefinition 定义工具的元数据（OpenAI function calling 格式）
type ToolDefinition struct {
	Type        string                 `json:"type"`        // "function"
	Name        string                 `json:"name"`        // 工具名称
	Description string                 `json:"description"` // 工具描述
	Parameters  map[string]interface{} `json:"parameters"`  // JSON Schema格式的参数定义
}

// ToolExecutor 工具执行器接口
type ToolExecutor interface {
	// GetDefinition 返回工具定义
	GetDefinition() ToolDefinition

	// Execute 执行工具调用
	// 返回结果字符串和错误
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Trigger 由用户输入直接触发的工具（不经过模型的 function calling）
type Trigger interface {
	// Match 判断输入是否触发该工具，命中时返回调用参数
	Match(input string) (map[string]interface{}, bool)
}

// ToolRegistry 工具注册表
type ToolRegistry struct {
	tools map[string]ToolExecutor
	order []string
}

// NewToolRegistry 创建工具注册表
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]ToolExecutor),
	}
}

// Register 注册工具，重复注册同名工具会覆盖但保持原有顺序
func (r *ToolRegistry) Register(executor ToolExecutor) {
	def := executor.GetDefinition()
	if _, exists := r.tools[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.tools[def.Name] = executor
}

// Get 获取工具执行器
func (r *ToolRegistry) Get(name string) (ToolExecutor, bool) {
	executor, ok := r.tools[name]
	return executor, ok
}

// GetAllDefinitions 按注册顺序获取所有工具定义
func (r *ToolRegistry) GetAllDefinitions() []ToolDefinition {
	definitions := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		definitions = append(definitions, r.tools[name].GetDefinition())
	}
	return definitions
}

// Route 按注册顺序找到第一个被输入触发的工具
func (r *ToolRegistry) Route(input string) (string, map[string]interface{}, bool) {
	for _, name := range r.order {
		trigger, ok := r.tools[name].(Trigger)
		if !ok {
			continue
		}
		if args, hit := trigger.Match(input); hit {
			return name, args, true
		}
	}
	return "", nil, false
}

// Invoke 以已解析的参数执行工具
func (r *ToolRegistry) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	executor, ok := r.Get(name)
	if !ok {
		return "", &ToolNotFoundError{ToolName: name}
	}
	return executor.Execute(ctx, args)
}

// ToolNotFoundError 工具未找到错误
type ToolNotFoundError struct {
	ToolName string
}

func (e *ToolNotFoundError) Error() string {
	return "tool not found: " + e.ToolName
}
