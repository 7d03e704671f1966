package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pretgo/internal/labels"
	"pretgo/internal/models"
	"pretgo/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(_ context.Context, zpl []string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, zpl...)
	return nil
}

func TestLabelService(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewLabelService(db, db, worker.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}, testLogger())

	sender := &recordingSender{}
	var usedCfg labels.Config
	svc.newSender = func(cfg labels.Config) (labels.Sender, error) {
		usedCfg = cfg
		return sender, nil
	}

	it := &models.Item{Type: "Informatique", Brand: "HP"}
	require.NoError(t, db.CreateItem(ctx, it))

	t.Run("PreviewWhileDisabled", func(t *testing.T) {
		zpl, err := svc.Preview(ctx, []int64{it.ID})
		require.NoError(t, err)
		require.Len(t, zpl, 1)
		assert.Contains(t, zpl[0], "^FDPC-00001^FS")
	})

	t.Run("Disabled", func(t *testing.T) {
		_, err := svc.Print(ctx, []int64{it.ID})
		assert.ErrorIs(t, err, ErrPrintingDisabled)
	})

	require.NoError(t, db.SetSettings(ctx, map[string]string{
		models.SettingZebraEnabled: "1",
		models.SettingZebraMethod:  "http",
		models.SettingZebraTearOff: "010",
	}))

	t.Run("Print", func(t *testing.T) {
		n, err := svc.Print(ctx, []int64{it.ID, 9999})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, labels.MethodHTTP, usedCfg.Method)
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0], "~TA010^XA")
	})

	t.Run("NoSelection", func(t *testing.T) {
		_, err := svc.Print(ctx, nil)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = svc.Print(ctx, []int64{9999})
		assert.ErrorIs(t, err, ErrNoItems)
	})

	t.Run("PrinterDown", func(t *testing.T) {
		sender.err = errors.New("paper jam")
		_, err := svc.Print(ctx, []int64{it.ID})
		assert.Error(t, err)
	})
}
