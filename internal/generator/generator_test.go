package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/mindmap"
	"github.com/foxhui123/AutoQA/internal/settings"
	"github.com/foxhui123/AutoQA/internal/suite"
	"github.com/foxhui123/AutoQA/internal/testutil"
)

// stubModel records the last request and replays a canned answer
type stubModel struct {
	content string
	err     error
	calls   int
	last    *llm.Request
}

func (m *stubModel) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Content: m.content, Model: "stub", Provider: req.Provider.Kind}, nil
}

func TestFromText(t *testing.T) {
	m := &stubModel{content: testutil.SuiteJSON}
	g := NewGenerator(m, llm.DefaultPromptOptions())

	res, err := g.FromText(context.Background(), "用户登录，邮箱格式校验，密码错误提示", llm.Selection{Kind: llm.ProviderLocal})
	require.NoError(t, err)

	assert.Equal(t, 1, m.calls)
	assert.Equal(t, llm.InputText, m.last.Input)
	assert.Nil(t, m.last.Image)
	assert.NotNil(t, m.last.Schema)
	assert.Contains(t, m.last.Prompt, "用户登录，邮箱格式校验，密码错误提示")
	assert.Equal(t, llm.ProviderLocal, res.Provider)
	assert.Equal(t, "stub", res.Model)

	require.Equal(t, 3, res.Suite.Len())
	assert.Equal(t, "用户登录", res.Suite.FeatureName)

	// The same suite drives the table and the mind map
	assert.Len(t, suite.Table(res.Suite), 4)
	c := mindmap.NewCanvas(800, 600)
	c.SetSuite(res.Suite)
	assert.Len(t, c.Diagram().Nodes, 4)
	assert.Len(t, c.Diagram().Links, 3)
}

func TestFromText_EmptyRequirements(t *testing.T) {
	m := &stubModel{content: testutil.SuiteJSON}
	g := NewGenerator(m, llm.DefaultPromptOptions())

	_, err := g.FromText(context.Background(), "  \n\t", llm.Selection{})
	assert.ErrorIs(t, err, llm.ErrEmptyRequirements)
	assert.Zero(t, m.calls, "no request is sent for blank input")
}

func TestFromText_ProviderError(t *testing.T) {
	m := &stubModel{err: llm.NewError(llm.KindQuotaExceeded, llm.ProviderHosted, nil, "quota exceeded")}
	g := NewGenerator(m, llm.DefaultPromptOptions())

	_, err := g.FromText(context.Background(), "登录", llm.Selection{Kind: llm.ProviderHosted})
	assert.ErrorIs(t, err, llm.ErrQuotaExceeded)
}

func TestFromText_MalformedAnswer(t *testing.T) {
	m := &stubModel{content: "抱歉，我无法生成测试用例。"}
	g := NewGenerator(m, llm.DefaultPromptOptions())

	_, err := g.FromText(context.Background(), "登录", llm.Selection{})
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
}

func TestFromImage(t *testing.T) {
	m := &stubModel{content: "```json\n" + testutil.SuiteJSON + "\n```"}
	g := NewGenerator(m, llm.PromptOptions{Language: "English"})

	res, err := g.FromImage(context.Background(), testutil.PNG, "", "关注异常分支", llm.Selection{Kind: llm.ProviderHosted})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Suite.Len())

	require.NotNil(t, m.last.Image)
	assert.Equal(t, llm.InputImage, m.last.Input)
	assert.Equal(t, "image/png", m.last.Image.MIMEType)
	assert.Equal(t, testutil.PNG, m.last.Image.Data)
	assert.True(t, strings.HasPrefix(m.last.Prompt, "分析流程图并生成测试用例。关注异常分支"))
	assert.Contains(t, m.last.Prompt, "English")
}

func TestFromImage_RejectsNonImage(t *testing.T) {
	m := &stubModel{content: testutil.SuiteJSON}
	g := NewGenerator(m, llm.DefaultPromptOptions())

	_, err := g.FromImage(context.Background(), []byte("%PDF-1.7 not an image"), "", "", llm.Selection{})
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = g.FromImage(context.Background(), nil, "image/png", "", llm.Selection{})
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Zero(t, m.calls)
}

func TestImageType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		declared string
		want     string
		wantErr  bool
	}{
		{"sniffed png", testutil.PNG, "", "image/png", false},
		{"octet stream is sniffed", testutil.PNG, "application/octet-stream", "image/png", false},
		{"declared webp", []byte("data"), "image/webp", "image/webp", false},
		{"jpg alias", []byte("data"), "image/jpg", "image/jpeg", false},
		{"parameters stripped", []byte("data"), "Image/JPEG; q=1", "image/jpeg", false},
		{"gif rejected", []byte("GIF89a"), "", "", true},
		{"declared svg rejected", []byte("<svg/>"), "image/svg+xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImageType(tt.data, tt.declared)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidImage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerator_ThroughAdapter(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		prompt = body.Messages[len(body.Messages)-1].Content

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "qwen2.5",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": testutil.SuiteJSON}},
			},
		})
	}))
	defer server.Close()

	ctx := context.Background()
	store := settings.NewMemoryStore()
	require.NoError(t, store.Set(ctx, settings.KeyLocalModelURL, server.URL))
	require.NoError(t, store.Set(ctx, settings.KeyLocalModelName, "qwen2.5"))

	adapter := llm.NewAdapter(store, llm.Defaults{Provider: llm.ProviderLocal},
		llm.WithClient(llm.NewOpenAICompatClient(0)))
	g := NewGenerator(adapter, llm.DefaultPromptOptions())

	res, err := g.FromText(ctx, "用户登录，邮箱格式校验，密码错误提示", llm.Selection{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Suite.Len())
	assert.Equal(t, llm.ProviderLocal, res.Provider)
	assert.Contains(t, prompt, "邮箱格式校验")

	// Local providers cannot read flowcharts
	_, err = g.FromImage(ctx, testutil.PNG, "image/png", "", llm.Selection{})
	assert.ErrorIs(t, err, llm.ErrUnsupportedCapability)

	stats := adapter.Usage().Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
}

func TestGenerator_ErrorKindSurvivesWrapping(t *testing.T) {
	inner := llm.NewError(llm.KindConnectionError, llm.ProviderLocal, errors.New("dial tcp: refused"), "cannot reach endpoint")
	m := &stubModel{err: inner}
	g := NewGenerator(m, llm.DefaultPromptOptions())

	_, err := g.FromText(context.Background(), "登录", llm.Selection{})
	assert.Equal(t, llm.KindConnectionError, llm.KindOf(err))
}
