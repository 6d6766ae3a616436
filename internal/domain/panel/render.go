package panel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/divpanel/internal/dom"
	"github.com/GriffinCanCode/divpanel/internal/domain/fragment"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
)

// WrapperClass marks the div a wrapped mount renders into
const WrapperClass = "div-panel-wrapper"

// render mounts the committed options according to the lifecycle state.
// Caller holds p.mu.
func (p *Panel) render(ctx context.Context) (*types.RenderResult, error) {
	ctx, span := tracing.Start(ctx, "panel.render")
	span.Annotate("panel_id", p.id).Annotate("mode", string(p.options.Mode))

	res, err := p.remount(ctx)
	if res != nil {
		span.Annotate("mount", string(res.Mount))
	}
	span.End(err)
	return res, err
}

func (p *Panel) remount(ctx context.Context) (*types.RenderResult, error) {
	start := time.Now()

	if err := p.runtime.Cleanup(ctx); err != nil {
		p.logger.Warn("effect cleanup failed", zap.Error(err))
	}
	p.mount, p.bundle = nil, nil

	if p.state.Command == types.CommandClear {
		if err := p.doc.SetInnerHTML(p.root, Placeholder); err != nil {
			return nil, fmt.Errorf("mount placeholder: %w", err)
		}
		return p.finish(types.MountPlaceholder, start), nil
	}

	if err := p.doc.SetInnerHTML(p.root, ""); err != nil {
		return nil, fmt.Errorf("unmount: %w", err)
	}

	kind := types.MountWrapped
	elem := p.root
	if p.state.EditMode && fragment.HasLifecycleEditHooks(p.options.Content) {
		kind = types.MountDirect
	} else {
		elem = dom.NewElement("div", html.Attribute{Key: "class", Val: WrapperClass})
		if err := p.doc.Append(p.root, elem); err != nil {
			return nil, fmt.Errorf("mount wrapper: %w", err)
		}
	}
	p.mount = elem

	var err error
	if p.options.Mode == types.ModeComponent {
		err = p.mountComponent(ctx, elem)
	} else {
		err = p.mountHTML(ctx, elem)
	}

	res := p.finish(kind, start)
	if err != nil {
		p.logger.Warn("render failed",
			zap.String("mode", string(p.options.Mode)),
			zap.String("mount", string(kind)),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

// mountHTML writes the display markup, loads dependencies, then runs the
// init hooks, the modules and the data hook in that order
func (p *Panel) mountHTML(ctx context.Context, elem *html.Node) error {
	bundle, err := p.classifier.Classify(p.options.Content, p.options.Error)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	p.bundle = bundle

	if _, err := p.doc.Write(elem, bundle.HTML); err != nil {
		return fmt.Errorf("mount markup: %w", err)
	}
	if _, err := p.loader.LoadDependencies(ctx, elem, bundle.Imports, bundle.Meta); err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}
	if err := p.runHooks(ctx, sandbox.HookInit); err != nil {
		return err
	}
	for _, module := range bundle.Modules {
		if _, err := p.loader.LoadModule(ctx, module, p.data, elem); err != nil {
			return err
		}
	}
	return p.runHooks(ctx, sandbox.HookDataUpdate)
}

// mountComponent instantiates the exported component, renders it with
// props and runs its effects
func (p *Panel) mountComponent(ctx context.Context, elem *html.Node) error {
	if p.options.Transformed == "" {
		if p.options.Error == "" {
			return nil
		}
		_, err := p.doc.Write(elem, p.options.Error)
		return err
	}

	props := sandbox.Props{
		Data:    p.data,
		Options: p.options,
		Width:   p.config.Width,
		Height:  p.config.Height,
	}
	component, err := p.runtime.Instantiate(ctx, p.options.Transformed, p.options.ExportedFn, p.runtime.DefaultBindings(props))
	if err != nil {
		return err
	}
	markup, err := p.runtime.RenderComponent(ctx, component, props)
	if err != nil {
		return fmt.Errorf("render %s: %w", p.options.ExportedFn, err)
	}
	if _, err := p.doc.Write(elem, markup); err != nil {
		return fmt.Errorf("mount component: %w", err)
	}
	return p.runtime.FlushEffects(ctx)
}

// runHooks runs hook for every classified script against the mounted
// element. The data hook is skipped without data.
func (p *Panel) runHooks(ctx context.Context, hook sandbox.Hook) error {
	if p.bundle == nil || p.mount == nil || p.state.Command == types.CommandClear {
		return nil
	}

	var data interface{}
	if hook == sandbox.HookDataUpdate {
		if p.data == nil {
			return nil
		}
		data = p.data
	}

	for _, script := range p.bundle.Scripts {
		_, err := p.runtime.RunHook(ctx, hook, dom.Text(script), p.mount, data)
		if p.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			p.metrics.RecordHook(string(hook), status)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// finish records a completed render. Caller holds p.mu.
func (p *Panel) finish(kind types.MountKind, start time.Time) *types.RenderResult {
	if p.metrics != nil {
		p.metrics.RecordRender(string(p.options.Mode), string(kind))
	}
	return p.snapshot(&types.RenderResult{Mount: kind, Duration: time.Since(start)})
}

// snapshot captures the root markup and new console output into a result
// based on prev, stores it as the last render and publishes it
func (p *Panel) snapshot(prev *types.RenderResult) *types.RenderResult {
	res := types.RenderResult{Mount: types.MountPlaceholder}
	if prev != nil {
		res = *prev
	}
	res.PanelID = p.id
	res.HTML = p.doc.InnerHTML(p.root)
	res.Console = append(append([]types.ConsoleLine{}, res.Console...), p.drainConsole()...)

	p.last = &res
	p.publish(res)

	out := res
	return &out
}

// drainConsole returns console lines written since the last drain
func (p *Panel) drainConsole() []types.ConsoleLine {
	entries := p.runtime.Console()
	lines := make([]types.ConsoleLine, len(entries))
	for i, e := range entries {
		lines[i] = types.ConsoleLine{Level: e.Level, Message: e.Message, Time: e.Time}
	}
	return lines
}

func attrOf(node *html.Node, key string) string {
	v, _ := dom.Attr(node, key)
	return v
}
