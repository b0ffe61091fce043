package command

import (
	"context"
	"encoding/json"
	"errors"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// EinoTools returns eino tools for every enabled command, so an eino agent
// can bind the registry directly. Calls go through Invoke, so gating and
// events apply.
func (r *Registry) EinoTools() []einotool.BaseTool {
	var tools []einotool.BaseTool
	for _, e := range r.sorted() {
		if !e.gate.Enabled {
			continue
		}
		tools = append(tools, &einoCommand{registry: r, cmd: e.cmd})
	}
	return tools
}

// ToolInfos returns eino tool infos for every enabled command.
func (r *Registry) ToolInfos(ctx context.Context) ([]*schema.ToolInfo, error) {
	var infos []*schema.ToolInfo
	for _, t := range r.EinoTools() {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// einoCommand adapts a registered command to eino's InvokableTool.
type einoCommand struct {
	registry *Registry
	cmd      Command
}

func (t *einoCommand) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.cmd.Name(),
		Desc:        t.cmd.Label(),
		ParamsOneOf: schema.NewParamsOneOfByParams(einoParams(t.cmd.Args())),
	}, nil
}

// InvokableRun returns the agent-facing reply. Only context cancellation is
// reported as an error; command failures are part of the reply text.
func (t *einoCommand) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	result, err := t.registry.Invoke(ctx, t.cmd.Name(), json.RawMessage(argsJSON))
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return "", err
	}
	return Reply(result, err), nil
}

func einoParams(args []Arg) map[string]*schema.ParameterInfo {
	params := make(map[string]*schema.ParameterInfo, len(args))
	for _, a := range args {
		paramType := schema.String
		switch a.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}
		info := &schema.ParameterInfo{
			Type:     paramType,
			Desc:     a.Description,
			Required: a.Required,
		}
		if paramType == schema.Array {
			info.ElemInfo = &schema.ParameterInfo{Type: schema.String}
		}
		params[a.Name] = info
	}
	return params
}
