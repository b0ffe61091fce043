package command

import (
	"context"
	"testing"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEinoTools_SkipsDisabled(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("echo", CategoryFile), Always)
	r.Register(echoCommand("hidden", CategoryFile), Require(false, "off"))

	tools := r.EinoTools()
	require.Len(t, tools, 1)

	info, err := tools[0].Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "echo", info.Name)
	assert.Equal(t, "Echo echo", info.Desc)
}

func TestEinoTools_InvokableRun(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("echo", CategoryFile), Always)
	r.Register(failingCommand("bad"), Always)

	var echo, bad einotool.InvokableTool
	for _, tool := range r.EinoTools() {
		info, _ := tool.Info(context.Background())
		switch info.Name {
		case "echo":
			echo = tool.(einotool.InvokableTool)
		case "bad":
			bad = tool.(einotool.InvokableTool)
		}
	}
	require.NotNil(t, echo)
	require.NotNil(t, bad)

	out, err := echo.InvokableRun(context.Background(), `{"text":"hello"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = bad.InvokableRun(context.Background(), `{}`)
	require.NoError(t, err, "command failures are reported in the reply")
	assert.Equal(t, "Error: boom", out)
}

func TestToolInfos(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("a", CategoryFile), Always)
	r.Register(echoCommand("b", CategoryGit), Always)

	infos, err := r.ToolInfos(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
}
