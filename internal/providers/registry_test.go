package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/core"
)

// mapCredentials is a CredentialSource backed by a mutable map, letting tests
// simulate configuration reloads.
type mapCredentials map[string]string

func (m mapCredentials) Lookup(envKey string) string { return m[envKey] }

func TestRegistry_Providers(t *testing.T) {
	r := NewRegistry(mapCredentials{}, nil)

	infos := r.Providers()
	require.Len(t, infos, 3)
	assert.Equal(t, "openai", infos[0].ID)
	assert.Equal(t, "deepseek", infos[1].ID)
	assert.Equal(t, "gemini", infos[2].ID)
	assert.Equal(t, "OpenAI", infos[0].DisplayName)
}

func TestRegistry_DescriptorFor_Unknown(t *testing.T) {
	r := NewRegistry(mapCredentials{}, nil)

	_, err := r.DescriptorFor("mistral")

	var classified *core.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, core.CategoryBadRequest, classified.Category)
	assert.Contains(t, classified.Message, "unsupported provider")
}

func TestRegistry_IsValidModel(t *testing.T) {
	r := NewRegistry(mapCredentials{}, nil)

	tests := []struct {
		provider string
		model    string
		valid    bool
	}{
		{"openai", "gpt-4o", true},
		{"openai", "deepseek-chat", false},
		{"deepseek", "deepseek-chat", true},
		{"gemini", "gemini-2.0-flash", true},
		{"gemini", "not-a-real-model", false},
		{"unknown", "gpt-4o", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			assert.Equal(t, tt.valid, r.IsValidModel(tt.provider, tt.model))
		})
	}
}

func TestRegistry_Models(t *testing.T) {
	r := NewRegistry(mapCredentials{}, nil)

	models, err := r.Models("deepseek")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "deepseek-chat", models[0].ID)

	_, err = r.Models("nope")
	var classified *core.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, core.CategoryBadRequest, classified.Category)
}

func TestRegistry_Overrides(t *testing.T) {
	r := NewRegistry(mapCredentials{}, map[string]Override{
		"openai": {
			BaseURL: "http://localhost:9999/v1",
			Models:  []string{"my-tuned-model"},
		},
	})

	d, err := r.DescriptorFor("openai")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/v1", d.BaseURL)
	assert.Equal(t, []string{"my-tuned-model"}, d.Models)

	// Untouched providers keep their defaults.
	assert.True(t, r.IsValidModel("deepseek", "deepseek-chat"))
}

func TestRegistry_CreateInvoker_MissingCredential(t *testing.T) {
	r := NewRegistry(mapCredentials{}, nil)

	_, _, err := r.CreateInvoker("deepseek")

	var classified *core.Error
	require.ErrorAs(t, err, &classified)
	// Provider selection was valid; the missing secret is an operator error.
	assert.Equal(t, core.CategoryInternal, classified.Category)
	assert.Contains(t, classified.Message, "DEEPSEEK_API_KEY")
	assert.Contains(t, classified.Message, "missing credential for deepseek")
}

func TestRegistry_CreateInvoker_Success(t *testing.T) {
	r := NewRegistry(mapCredentials{"OPENAI_API_KEY": "sk-test"}, nil)

	inv, d, err := r.CreateInvoker("openai")
	require.NoError(t, err)
	assert.NotNil(t, inv)
	assert.Equal(t, "openai", d.ID)
}

func TestRegistry_CredentialCaching(t *testing.T) {
	creds := mapCredentials{}
	r := NewRegistry(creds, nil)

	// Missing credentials are never cached: a later configuration reload
	// must be able to succeed.
	_, _, err := r.CreateInvoker("gemini")
	require.Error(t, err)

	creds["GEMINI_API_KEY"] = "key-1"
	_, _, err = r.CreateInvoker("gemini")
	require.NoError(t, err)

	// Present credentials may be cached for the process lifetime.
	delete(creds, "GEMINI_API_KEY")
	_, _, err = r.CreateInvoker("gemini")
	assert.NoError(t, err)
}

func TestRegistry_CreateInvoker_UnknownProvider(t *testing.T) {
	r := NewRegistry(mapCredentials{}, nil)

	_, _, err := r.CreateInvoker("anthropic")

	var classified *core.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, core.CategoryBadRequest, classified.Category)
}
