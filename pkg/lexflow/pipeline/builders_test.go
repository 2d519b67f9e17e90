package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/stages"
	"github.com/cognicore/lexflow/pkg/lexflow/store/memstore"
)

func seeded(t *testing.T, procs ...process.Process) *memstore.Store {
	t.Helper()
	st := memstore.New(stages.Codec{})
	for _, proc := range procs {
		require.NoError(t, st.Save(context.Background(), proc.Descriptor(), proc))
	}
	return st
}

func detectorV(lang model.Language, v int) *stages.SentenceDetector {
	sd := stages.NewSentenceDetector(lang, "")
	sd.SetVersion(v)
	return sd
}

func TestForLanguageWithoutStore(t *testing.T) {
	p, err := ForLanguage(context.Background(), nil, model.English, Include{}, quiet())
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	assert.True(t, process.IsTokenizer(p.Processes()[0]))
	assert.Equal(t, model.English, p.Descriptor().Language)
}

func TestForLanguageLoadsLatestVersions(t *testing.T) {
	st := seeded(t, detectorV(model.English, 1), detectorV(model.English, 3), taggerV(2))

	p, err := ForLanguage(context.Background(), st, model.English, Include{SentenceDetector: true, Tagger: true}, quiet())
	require.NoError(t, err)

	got := p.GetModelsList()
	require.Len(t, got, 3)
	assert.Equal(t, model.KindTokenizer, got[0].Kind)
	assert.Equal(t, detectorV(model.English, 3).Descriptor(), got[1])
	assert.Equal(t, taggerV(2).Descriptor(), got[2])
	assert.Equal(t, got, p.StoredModels())
}

func TestForLanguageMissingRequestedModel(t *testing.T) {
	st := seeded(t, detectorV(model.English, 1))

	_, err := ForLanguage(context.Background(), st, model.English, Include{Tagger: true}, quiet())
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestForLanguagesKeepsStagesScoped(t *testing.T) {
	st := seeded(t, detectorV(model.English, 1), detectorV(model.French, 1))

	p, err := ForLanguages(context.Background(), st, []model.Language{model.English, model.French}, Include{SentenceDetector: true}, quiet())
	require.NoError(t, err)
	assert.Equal(t, model.Any, p.Descriptor().Language)
	require.Equal(t, 4, p.Len())

	doc := document.New("Bonjour. Merci.", model.French)
	require.NoError(t, p.ProcessSingle(doc))
	assert.Equal(t, 4, doc.TokensCount())
	assert.Equal(t, 2, doc.SpansCount())
}

func TestTokenizerWithSentenceDetectorFallsBackToEnglish(t *testing.T) {
	st := seeded(t, detectorV(model.English, 2))

	p, err := TokenizerWithSentenceDetector(context.Background(), st, model.German, quiet())
	require.NoError(t, err)
	procs := p.Processes()
	require.Len(t, procs, 2)
	assert.Equal(t, model.German, process.Language(procs[1]))
	assert.Equal(t, model.KindSentenceDetector, procs[1].Descriptor().Kind)

	doc := document.New("Guten Tag. Wie geht es?", model.German)
	require.NoError(t, p.ProcessSingle(doc))
	assert.Equal(t, 2, doc.SpansCount())
}

func TestTokenizerWithSentenceDetectorPrefersOwnLanguage(t *testing.T) {
	st := seeded(t, detectorV(model.English, 2), detectorV(model.French, 1))

	p, err := TokenizerWithSentenceDetector(context.Background(), st, model.French, quiet())
	require.NoError(t, err)
	assert.Equal(t, detectorV(model.French, 1).Descriptor(), p.GetModelsList()[1])
}

func TestTokenizerWithSentenceDetectorToleratesAbsence(t *testing.T) {
	p, err := TokenizerWithSentenceDetector(context.Background(), memstore.New(stages.Codec{}), model.Spanish, quiet())
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	assert.True(t, process.IsTokenizer(p.Processes()[0]))
}
