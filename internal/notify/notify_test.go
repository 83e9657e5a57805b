package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSafe_Delivers(t *testing.T) {
	var gotTitle, gotBody string
	Safe(Func(func(title, body string) error {
		gotTitle, gotBody = title, body
		return nil
	}), "Download started", "rom.zip")

	assert.Equal(t, "Download started", gotTitle)
	assert.Equal(t, "rom.zip", gotBody)
}

func TestSafe_SwallowsErrorsAndPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		Safe(Func(func(string, string) error { return errors.New("denied") }), "t", "b")
	})
	assert.NotPanics(t, func() {
		Safe(Func(func(string, string) error { panic("no display") }), "t", "b")
	})
	assert.NotPanics(t, func() {
		Safe(nil, "t", "b")
	})
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	assert.NoError(t, n.Notify("Download complete", "boot.img"))
	entries := logs.FilterMessage("notification").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "Download complete", fields["title"])
		assert.Equal(t, "boot.img", fields["body"])
	}
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify("a", "b"))
}
