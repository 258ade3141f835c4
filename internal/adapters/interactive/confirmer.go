package interactive

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"

	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// ConfirmerAdapter asks a yes/no question on the terminal
type ConfirmerAdapter struct {
	run func(p *promptui.Prompt) (string, error)
}

// NewConfirmerAdapter creates a new confirmer
func NewConfirmerAdapter() *ConfirmerAdapter {
	return &ConfirmerAdapter{
		run: func(p *promptui.Prompt) (string, error) { return p.Run() },
	}
}

// Confirm implements usecase.Confirmer. Anything but an explicit yes is a no.
func (c *ConfirmerAdapter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p := &promptui.Prompt{
		Label:     color.New(color.FgYellow, color.Bold).Sprint(prompt),
		IsConfirm: true,
		Templates: &promptui.PromptTemplates{
			Confirm: "{{ . }} [y/N] ",
			Success: "{{ . | faint }} ",
		},
	}

	_, err := c.run(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return false, usecase.ErrAborted
	}
	return false, fmt.Errorf("confirmation failed: %w", err)
}

var _ usecase.Confirmer = (*ConfirmerAdapter)(nil)
