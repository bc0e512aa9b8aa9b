package exec

import (
	"fmt"

	"github.com/jonwraymond/toolscript/catalog"
	"github.com/jonwraymond/toolscript/protocol"
	"github.com/jonwraymond/toolscript/shelltool"
)

// ToolInfos projects catalog entries to their wire form.
func ToolInfos(entries []catalog.Entry) []protocol.ToolInfo {
	out := make([]protocol.ToolInfo, len(entries))
	for i, e := range entries {
		out[i] = protocol.ToolInfo{
			Name:        e.Name,
			Description: e.Description,
			Tags:        e.Tags,
		}
	}
	return out
}

// DescribeResponse projects a tool description to its wire form.
func DescribeResponse(d catalog.Description) protocol.DescribeToolResponse {
	return protocol.DescribeToolResponse{
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		Summary:     d.Summary,
		Notes:       d.Notes,
		Tags:        d.Tags,
		Kind:        d.Kind,
	}
}

// HandleRegister registers the shell tool described by req.
func (e *Exec) HandleRegister(req protocol.RegisterToolRequest) (protocol.RegisterToolResponse, error) {
	t := shelltool.Tool{Name: req.Name, Description: req.Description, Command: req.Command}
	if err := e.RegisterShellTool(t, req.Tags); err != nil {
		return protocol.RegisterToolResponse{}, err
	}
	return protocol.RegisterToolResponse{
		Name:    req.Name,
		Message: fmt.Sprintf("Tool '%s' registered successfully", req.Name),
	}, nil
}

// HandleUnregister removes the tool named by req.
func (e *Exec) HandleUnregister(req protocol.UnregisterToolRequest) protocol.UnregisterToolResponse {
	resp := protocol.UnregisterToolResponse{Name: req.Name, Removed: e.UnregisterTool(req.Name)}
	if resp.Removed {
		resp.Message = fmt.Sprintf("Tool '%s' unregistered", req.Name)
	} else {
		resp.Message = fmt.Sprintf("Tool '%s' not found", req.Name)
	}
	return resp
}
