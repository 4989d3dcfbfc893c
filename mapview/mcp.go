package mapview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the map tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerView(srv)
	s.registerSVG(srv)
	s.registerRefresh(srv)
	s.registerSelect(srv)
	s.registerZoom(srv)
	s.registerEdit(srv)
	s.registerHistory(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// registerTool decodes arguments into Req, calls endpoint and returns its
// result as JSON text. Errors become tool errors, not protocol errors.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(ctx context.Context, req *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, r *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req Req
		if args := r.Params.Arguments; len(args) > 0 {
			if err := json.Unmarshal(args, &req); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		resp, err := endpoint(ctx, &req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		text, ok := resp.(string)
		if !ok {
			data, err := json.Marshal(resp)
			if err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("marshal: %w", err))
				return &res, nil
			}
			text = string(data)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	})
}

type noArgs struct{}

func (s *Service) registerView(srv *mcp.Server) {
	registerTool(srv, &mcp.Tool{
		Name:        "plotmap_view",
		Description: "Current map state: plots, selection, zoom, row count",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ *noArgs) (any, error) {
		return s.View(), nil
	})
}

func (s *Service) registerSVG(srv *mcp.Server) {
	registerTool(srv, &mcp.Tool{
		Name:        "plotmap_svg",
		Description: "Render the composed map as SVG markup",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ *noArgs) (any, error) {
		var buf bytes.Buffer
		if err := s.WriteSVG(&buf); err != nil {
			return nil, err
		}
		return buf.String(), nil
	})
}

func (s *Service) registerRefresh(srv *mcp.Server) {
	registerTool(srv, &mcp.Tool{
		Name:        "plotmap_refresh",
		Description: "Fetch the plot source now and re-render if it changed",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ *noArgs) (any, error) {
		out := s.Refresh(ctx)
		return map[string]any{"outcome": out.String(), "stats": s.Stats()}, nil
	})
}

func (s *Service) registerSelect(srv *mcp.Server) {
	type req struct {
		PlotID string `json:"plot_id"`
	}
	registerTool(srv, &mcp.Tool{
		Name:        "plotmap_select",
		Description: "Select and highlight a plot by id",
		InputSchema: inputSchema(map[string]any{
			"plot_id": map[string]any{"type": "string", "description": "Plot ID"},
		}, []string{"plot_id"}),
	}, func(ctx context.Context, r *req) (any, error) {
		if !s.Select(r.PlotID) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlot, r.PlotID)
		}
		return map[string]string{"selected_id": r.PlotID}, nil
	})
}

func (s *Service) registerZoom(srv *mcp.Server) {
	type req struct {
		Action string  `json:"action"`
		Factor float64 `json:"factor"`
	}
	registerTool(srv, &mcp.Tool{
		Name:        "plotmap_zoom",
		Description: "Change the map zoom: in, out, reset, or set to a factor between 0.5 and 3",
		InputSchema: inputSchema(map[string]any{
			"action": map[string]any{"type": "string", "enum": []string{"in", "out", "reset", "set"}},
			"factor": map[string]any{"type": "number", "description": "Zoom factor for action=set"},
		}, []string{"action"}),
	}, func(ctx context.Context, r *req) (any, error) {
		var z float64
		switch r.Action {
		case "in":
			z = s.ZoomIn()
		case "out":
			z = s.ZoomOut()
		case "reset":
			z = s.ResetZoom()
		case "set":
			z = s.SetZoom(r.Factor)
		default:
			return nil, fmt.Errorf("unknown zoom action %q", r.Action)
		}
		return map[string]float64{"zoom": z}, nil
	})
}

func (s *Service) registerEdit(srv *mcp.Server) {
	type req struct {
		PlotID string  `json:"plot_id"`
		Name   *string `json:"plot_name"`
		Color  *string `json:"color"`
		X      *string `json:"x"`
		Y      *string `json:"y"`
		Width  *string `json:"width"`
		Height *string `json:"height"`
	}
	str := map[string]any{"type": "string"}
	registerTool(srv, &mcp.Tool{
		Name:        "plotmap_edit",
		Description: "Edit a plot locally (name, colour, geometry). Omitted fields keep their current value. Not written back to the source.",
		InputSchema: inputSchema(map[string]any{
			"plot_id": str, "plot_name": str, "color": str,
			"x": str, "y": str, "width": str, "height": str,
		}, []string{"plot_id"}),
	}, func(ctx context.Context, r *req) (any, error) {
		d, ok := s.BeginEdit(r.PlotID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlot, r.PlotID)
		}
		for dst, src := range map[*string]*string{
			&d.Name: r.Name, &d.Color: r.Color,
			&d.X: r.X, &d.Y: r.Y, &d.Width: r.Width, &d.Height: r.Height,
		} {
			if src != nil {
				*dst = *src
			}
		}
		edited, err := s.CommitEdit(ctx, d)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				s.CancelEdit()
			}
			return nil, err
		}
		return edited, nil
	})
}

func (s *Service) registerHistory(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}
	registerTool(srv, &mcp.Tool{
		Name:        "plotmap_history",
		Description: "Recent fetch cycles with outcome and fingerprint",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max entries (default 50)"},
		}, nil),
	}, func(ctx context.Context, r *req) (any, error) {
		return s.FetchHistory(ctx, r.Limit)
	})
}
