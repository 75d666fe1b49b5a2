package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chefitup/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipePage = `<!doctype html>
<html>
<head>
  <title>Zucchini Noodles | Healthy Kitchen</title>
  <meta property="og:image" content="/img/zoodles.jpg">
  <script>var tracking = "SECRET_TRACKER";</script>
  <style>.x { color: red }</style>
</head>
<body>
  <nav>Home Recipes About</nav>
  <h1>Zucchini Noodle Stir Fry</h1>
  <ul><li>2 zucchini</li><li>1 1/2 tbsp soy sauce</li></ul>
  <ol><li>Spiralize the zucchini.</li><li>Stir fry for 5 minutes.</li></ol>
  <footer>Copyright FOOTER_TEXT</footer>
</body>
</html>`

func newLocalImporter(gen llm.TextGenerator, rec MetricsRecorder) *Importer {
	imp := NewImporter(gen, rec, nil)
	imp.allowPrivate = true
	return imp
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/zoodles":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, recipePage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	t.Run("extracts a recipe from the page", func(t *testing.T) {
		gen := newScripted().on(markerImport, validRecipeJSON, nil)
		rec := &fakeRecorder{}
		imp := newLocalImporter(gen, rec)

		r, err := imp.Import(ctx, server.URL+"/zoodles")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(r.ID, "imported-"), r.ID)
		assert.Equal(t, "Zucchini Noodle Stir Fry", r.Title)
		assert.Equal(t, server.URL+"/img/zoodles.jpg", r.Image)

		require.Len(t, gen.prompts, 1)
		prompt := gen.prompts[0]
		assert.Contains(t, prompt, "Spiralize the zucchini.")
		assert.Contains(t, prompt, "Zucchini Noodles | Healthy Kitchen")
		assert.NotContains(t, prompt, "SECRET_TRACKER")
		assert.NotContains(t, prompt, "FOOTER_TEXT")
		assert.NotContains(t, prompt, "Home Recipes About")

		require.Len(t, rec.calls, 1)
		assert.Equal(t, agentImporter, rec.calls[0].meta.AgentName)
	})

	t.Run("rejects non http urls", func(t *testing.T) {
		gen := newScripted()
		imp := NewImporter(gen, nil, nil)
		for _, u := range []string{"", "ftp://example.com/r", "not a url", "/relative/path"} {
			_, err := imp.Import(ctx, u)
			assert.ErrorIs(t, err, ErrInvalidURL, u)
		}
		assert.Zero(t, gen.calls())
	})

	t.Run("page not found", func(t *testing.T) {
		gen := newScripted()
		_, err := newLocalImporter(gen, nil).Import(ctx, server.URL+"/missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
		assert.Zero(t, gen.calls())
	})

	t.Run("refuses local addresses", func(t *testing.T) {
		gen := newScripted()
		_, err := NewImporter(gen, nil, nil).Import(ctx, server.URL+"/zoodles")
		assert.ErrorIs(t, err, ErrPrivateAddress)
		assert.ErrorIs(t, err, ErrInvalidURL)
		assert.Zero(t, gen.calls())
	})

	t.Run("no provider", func(t *testing.T) {
		_, err := newLocalImporter(nil, nil).Import(ctx, server.URL+"/zoodles")
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("unusable answer", func(t *testing.T) {
		gen := newScripted().on(markerImport, `{"title":"Zoodles"}`, nil)
		_, err := newLocalImporter(gen, nil).Import(ctx, server.URL+"/zoodles")
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})
}
