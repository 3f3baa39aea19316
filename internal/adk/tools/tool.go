package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"google.golang.org/genai"
)

// 错误定义
var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrMissingArg  = errors.New("missing argument")
)

// Tool 可由分析师调用的外部工具
// Run 返回的文本作为工具结果回填给模型，error 同样回填而不是中断流程
type Tool interface {
	Name() string
	Description() string
	Declaration() *genai.FunctionDeclaration
	Run(ctx context.Context, args map[string]any) (string, error)
}

// Handler 工具处理函数
type Handler func(ctx context.Context, args Args) (string, error)

// FuncTool 以函数实现的工具
type FuncTool struct {
	name        string
	description string
	schema      map[string]any
	handler     Handler
}

// NewFuncTool 创建函数工具，schema 为 JSON Schema 对象
func NewFuncTool(name, description string, schema map[string]any, handler Handler) *FuncTool {
	if schema == nil {
		schema = ObjectSchema(nil)
	}
	return &FuncTool{name: name, description: description, schema: schema, handler: handler}
}

// Name 工具名称
func (t *FuncTool) Name() string { return t.name }

// Description 工具描述
func (t *FuncTool) Description() string { return t.description }

// Declaration 工具声明
func (t *FuncTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:                 t.name,
		Description:          t.description,
		ParametersJsonSchema: t.schema,
	}
}

// Run 执行工具
func (t *FuncTool) Run(ctx context.Context, args map[string]any) (string, error) {
	return t.handler(ctx, Args(args))
}

// Property JSON Schema 属性
type Property struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ObjectSchema 构建 object 类型的 JSON Schema
func ObjectSchema(props []Property) map[string]any {
	properties := make(map[string]any, len(props))
	required := make([]string, 0, len(props))
	for _, p := range props {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Args 工具参数
type Args map[string]any

// String 读取字符串参数
func (a Args) String(name, def string) string {
	v, ok := a[name]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		if s == "" {
			return def
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}

// RequireString 读取必填字符串参数
func (a Args) RequireString(name string) (string, error) {
	s := a.String(name, "")
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArg, name)
	}
	return s, nil
}

// Int 读取整数参数，模型常把数字写成字符串
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
