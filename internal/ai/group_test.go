package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (*Completion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Completion{Text: s.text}, nil
}

type stubEmbedder struct {
	vec   []float32
	err   error
	model string
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) ModelName() string {
	if s.model != "" {
		return s.model
	}
	return "stub"
}

func TestGroupGeneratorFallsBack(t *testing.T) {
	primary := &stubGenerator{err: errors.New("primary down")}
	backup := &stubGenerator{text: "ok"}
	g := NewGroupGenerator([]GeneratorEntry{
		{Name: "primary", Generator: primary},
		{Name: "backup", Generator: backup},
	})

	res, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "ok", res.Text)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, backup.calls)
}

func TestGroupGeneratorPrimaryWins(t *testing.T) {
	primary := &stubGenerator{text: "first"}
	backup := &stubGenerator{text: "second"}
	g := NewGroupGenerator([]GeneratorEntry{
		{Name: "primary", Generator: primary},
		{Name: "backup", Generator: backup},
	})

	res, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "first", res.Text)
	require.Equal(t, 0, backup.calls)
}

func TestGroupGeneratorAllFail(t *testing.T) {
	wantErr := errors.New("backup down")
	g := NewGroupGenerator([]GeneratorEntry{
		{Name: "primary", Generator: &stubGenerator{err: errors.New("primary down")}},
		{Name: "backup", Generator: &stubGenerator{err: wantErr}},
	})

	_, err := g.Generate(context.Background(), "prompt")
	require.ErrorIs(t, err, wantErr)
}

func TestGroupEmbedderFallsBack(t *testing.T) {
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "primary", Embedder: &stubEmbedder{err: errors.New("primary down")}},
		{Name: "backup", Embedder: &stubEmbedder{vec: []float32{1, 2}}},
	})

	vec, err := g.Embed(context.Background(), "text", "SEMANTIC_SIMILARITY")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, vec)
	require.Equal(t, "stub", g.ModelName())
}

func TestGroupEmbedderFailoverStaysWithinModel(t *testing.T) {
	primary := &stubEmbedder{err: errors.New("primary down"), model: "text-embedding-004"}
	backup := &stubEmbedder{vec: []float32{9, 9}, model: "other-model"}
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "primary", Embedder: primary},
		{Name: "backup", Embedder: backup},
	})

	// the cross-model backup is dropped: a vector from another model
	// must never be probed against this model's collections
	_, err := g.Embed(context.Background(), "text", "SEMANTIC_SIMILARITY")
	require.Error(t, err)
	require.Equal(t, 0, backup.calls)
	require.Equal(t, "text-embedding-004", g.ModelName())
}

func TestGroupConstructorsEmpty(t *testing.T) {
	require.Nil(t, NewGroupGenerator(nil))
	require.Nil(t, NewGroupEmbedder(nil))
}
