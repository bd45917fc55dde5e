package handlebars

import (
	"fmt"
)

// TemplateString is template source embedded in configuration, such as a
// test case or a YAML value, compiled on demand with the default engine.
type TemplateString string

func (t TemplateString) Validate() error {
	if _, err := Compile(string(t)); err != nil {
		return fmt.Errorf("invalid handlebars template: %w", err)
	}
	return nil
}

func (t TemplateString) Render(model any) (string, error) {
	return t.RenderWith(NewEngine(), model)
}

// RenderWith compiles and renders t with e.
func (t TemplateString) RenderWith(e *Engine, model any) (string, error) {
	tmpl, err := e.Compile(string(t))
	if err != nil {
		return "", fmt.Errorf("parsing handlebars template: %w", err)
	}
	return tmpl.Execute(model)
}

// ValidateWith compiles t with e, so helpers registered on e are known.
func (t TemplateString) ValidateWith(e *Engine) error {
	if _, err := e.Compile(string(t)); err != nil {
		return fmt.Errorf("invalid handlebars template: %w", err)
	}
	return nil
}
