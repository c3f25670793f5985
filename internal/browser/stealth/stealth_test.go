package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", AcceptLanguage([]string{"en-US", "en"}))
	assert.Equal(t, "de-DE,de;q=0.9,en;q=0.8", AcceptLanguage([]string{"de-DE", "de", "en"}))
	assert.Equal(t, "", AcceptLanguage(nil))
}

func TestScript(t *testing.T) {
	s := Script(DefaultPersona)
	require.True(t, strings.HasPrefix(s, "window.__easyapplyPersona = {"))
	assert.Contains(t, s, `"platform":"Win32"`)
	assert.Contains(t, s, "webdriver")
}

func TestApply(t *testing.T) {
	t.Run("full persona", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		tasks := Apply(DefaultPersona, zap.New(core))
		assert.Len(t, tasks, 5)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Applying browser stealth persona", logs.All()[0].Message)
	})

	t.Run("minimal persona and nil logger", func(t *testing.T) {
		assert.NotPanics(t, func() {
			tasks := Apply(Persona{UserAgent: "ua"}, nil)
			assert.Len(t, tasks, 2)
		})
	})
}
