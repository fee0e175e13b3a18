// AngelaMos | 2026
// handler_test.go

package pipeline

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/llm"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/middleware"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/rule"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/user"
)

func asCaller(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithCaller(r.Context(), &middleware.Caller{
				UserID: userID,
				Role:   role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func asUser(userID string) func(http.Handler) http.Handler {
	return asCaller(userID, middleware.RoleUser)
}

func newRouterAs(f *fixture, auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	NewHandler(f.svc, f.access, 1<<20).RegisterRoutes(r, auth)
	return r
}

func newTestRouter(f *fixture) http.Handler {
	return newRouterAs(f, asUser("user-1"))
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func multipartBody(t *testing.T, ruleIDs string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, content := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		h.Set("Content-Type", "text/plain")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}

	if ruleIDs != "" {
		require.NoError(t, mw.WriteField("ruleIds", ruleIDs))
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestAnalyzeHandler(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	body, contentType := multipartBody(t, "r1,r2", map[string]string{
		"contract.txt": "The agreement may be terminated with notice.",
	})

	req := httptest.NewRequest(http.MethodPost, "/analyzer/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(f).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Documents stored and analyzed successfully", env.Message)

	var batch BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "contract.txt", batch.Results[0].FileName)
	assert.Len(t, batch.Results[0].Analyses, 2)
	assert.Equal(t, 60, batch.TokenUsage.TotalUsed)
}

func TestAnalyzeHandlerRequiresFilesAndRules(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	body, contentType := multipartBody(t, "", map[string]string{"a.txt": "words"})

	req := httptest.NewRequest(http.MethodPost, "/analyzer/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(f).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, msgFilesAndRulesRequired, env.Message)
}

func TestAnalyzeHandlerAccessDenied(t *testing.T) {
	f := newFixture(t, subscribedDecision(0))
	f.access.decision.CanAnalyze = false
	f.access.decision.Message = "You have used all your tokens (15.0K)."
	body, contentType := multipartBody(t, "r1", map[string]string{"a.txt": "words"})

	req := httptest.NewRequest(http.MethodPost, "/analyzer/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(f).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "You have used all your tokens (15.0K).", decodeEnvelope(t, rec).Message)
}

func TestEditRulesHandlerValidates(t *testing.T) {
	f := newFixture(t, subscribedDecision(1_000))
	storedDocument(f, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/analyzer/documents/doc-1/edit-rules",
		strings.NewReader(`{"rules":[{"id":"not-a-uuid","description":"x"}]}`))
	rec := httptest.NewRecorder()

	newTestRouter(f).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.provider.Calls())
}

func TestEditRulesHandlerTakesAdminFromToken(t *testing.T) {
	foreignID := "0b8e1c52-6a3f-4d0e-9c1a-6f2d9b7e4a10"
	body := `{"rules":[{"id":"` + foreignID + `","description":"tightened wording"}]}`

	for _, tt := range []struct {
		role   string
		status int
	}{
		{role: middleware.RoleUser, status: http.StatusForbidden},
		{role: middleware.RoleAdmin, status: http.StatusOK},
	} {
		t.Run(tt.role, func(t *testing.T) {
			f := newFixture(t, subscribedDecision(1_000))
			storedDocument(f, "user-1")
			f.rules.rules[foreignID] = &rule.WithCreator{
				Rule:        rule.Rule{ID: foreignID, Title: "Notice", Description: "Names a notice period", CreatedByID: ptr("user-2")},
				CreatorRole: user.RoleUser,
			}

			req := httptest.NewRequest(http.MethodPost, "/analyzer/documents/doc-1/edit-rules",
				strings.NewReader(body))
			rec := httptest.NewRecorder()

			newRouterAs(f, asCaller("user-1", tt.role)).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, []string{foreignID}, f.rules.updated)
			} else {
				assert.Empty(t, f.rules.updated)
			}
		})
	}
}

func TestAnalyzeHandlerPartialBatch(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	f.provider.Respond = func(n int, _ llm.Request) (*llm.Completion, error) {
		if n >= 2 {
			return nil, llm.NewProviderError(http.StatusServiceUnavailable, "model overloaded", nil)
		}
		return &llm.Completion{Text: "Matched: ok", PromptTokens: 10, CompletionTokens: 5}, nil
	}
	body, contentType := multipartBody(t, "r1", map[string]string{
		"a.txt": "first contract",
		"b.txt": "second contract",
	})

	req := httptest.NewRequest(http.MethodPost, "/analyzer/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newTestRouter(f).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Some documents could not be analyzed", env.Message)

	var batch BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Len(t, batch.Results, 1)
	require.NotNil(t, batch.Failed)
	assert.Equal(t, "UPSTREAM_PROVIDER_ERROR", batch.Failed.Code)
	assert.Equal(t, 30, batch.TokenUsage.TotalUsed)
}

func TestGetAccessHandler(t *testing.T) {
	f := newFixture(t, subscribedDecision(12_500))

	rec := httptest.NewRecorder()
	newTestRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyzer/access", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var decision struct {
		CanAnalyze      bool `json:"can_analyze"`
		TokensRemaining int  `json:"tokens_remaining"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &decision))
	assert.True(t, decision.CanAnalyze)
	assert.Equal(t, 12_500, decision.TokensRemaining)
}

func TestDownloadHandler(t *testing.T) {
	f := newFixture(t, subscribedDecision(0))
	storedDocument(f, "user-1")

	rec := httptest.NewRecorder()
	newTestRouter(f).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/analyzer/documents/doc-1/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="policy.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "policy text body", rec.Body.String())

	rec = httptest.NewRecorder()
	newTestRouter(f).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/analyzer/documents/missing/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
