package interactive

import (
	"context"
	"errors"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeondelvers/delvectl/internal/usecase"
)

func TestConfirmerAdapter_Confirm(t *testing.T) {
	tests := []struct {
		name    string
		result  error
		want    bool
		wantErr error
	}{
		{name: "yes", want: true},
		{name: "no", result: promptui.ErrAbort, want: false},
		{name: "ctrl-c", result: promptui.ErrInterrupt, wantErr: usecase.ErrAborted},
		{name: "eof", result: promptui.ErrEOF, wantErr: usecase.ErrAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfirmerAdapter()
			var label string
			c.run = func(p *promptui.Prompt) (string, error) {
				label = p.Label.(string)
				assert.True(t, p.IsConfirm)
				return "", tt.result
			}

			ok, err := c.Confirm(context.Background(), "Deploy 2 contracts")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, label, "Deploy 2 contracts")
		})
	}

	t.Run("other errors are returned", func(t *testing.T) {
		c := NewConfirmerAdapter()
		c.run = func(*promptui.Prompt) (string, error) { return "", errors.New("no tty") }
		_, err := c.Confirm(context.Background(), "x")
		assert.ErrorContains(t, err, "no tty")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewConfirmerAdapter().Confirm(ctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
