package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hyperjump/nexus/internal/assemble"
	"github.com/hyperjump/nexus/internal/backend"
	"github.com/hyperjump/nexus/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAdapter returns canned results after an optional delay.
type fakeAdapter struct {
	name    string
	st      models.SourceType
	raws    []models.RawResult
	err     error
	delay   time.Duration
	panics  bool
	calls   atomic.Int32
	gotLim  atomic.Int32
	gotType atomic.Value
}

func (f *fakeAdapter) Name() string                  { return f.name }
func (f *fakeAdapter) SourceType() models.SourceType { return f.st }

func (f *fakeAdapter) Search(ctx context.Context, query string, filter models.Filter, limit int) ([]models.RawResult, error) {
	f.calls.Add(1)
	f.gotLim.Store(int32(limit))
	f.gotType.Store(filter.DocType)
	if f.panics {
		panic("adapter bug")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}

func raw(title, docType string, score float64) models.RawResult {
	return models.RawResult{
		ID:     title,
		Score:  models.Score(score),
		Struct: map[string]any{"title": title, "doc_type": docType, "content": title + " content"},
	}
}

func titles(docs []*models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Title
	}
	return out
}

func TestNew_NoAdapters(t *testing.T) {
	_, err := New(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestDispatch_MergesRanksAndAssembles(t *testing.T) {
	pdf := &fakeAdapter{name: "fulltext", st: models.SourceTypePDF, raws: []models.RawResult{
		raw("protocol", "Protocole", 0.9),
	}}
	rules := &fakeAdapter{name: "rules", st: models.SourceTypeStructured, raws: []models.RawResult{
		raw("cct", "CCT", 0.6),
	}}
	web := &fakeAdapter{name: "web", st: models.SourceTypeWeb, raws: []models.RawResult{
		raw("law", "Loi", 0.4),
	}}
	d, err := New([]backend.Adapter{pdf, rules, web}, nil, nil, nil)
	require.NoError(t, err)

	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "congé", DocType: "", Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, models.StateDone, ret.State)
	assert.Equal(t, []string{"law", "cct", "protocol"}, titles(ret.Documents))
	assert.Equal(t, models.SourceTypeWeb, ret.Documents[0].SourceType, "source type comes from the adapter")
	assert.Contains(t, ret.Context, "[PDF-1] protocol")
	assert.Contains(t, ret.Context, "[RULE-1] cct")
	assert.Contains(t, ret.Context, "[WEB-1] law")
	require.Len(t, ret.Branches, 3)
	for _, b := range ret.Branches {
		assert.Equal(t, models.BranchSucceeded, b.State)
		assert.Equal(t, 1, b.Count)
	}
	assert.Equal(t, int32(3), pdf.gotLim.Load())
}

func TestDispatch_PassesFilterAndDefaultLimit(t *testing.T) {
	a := &fakeAdapter{name: "a", st: models.SourceTypePDF}
	d, err := New([]backend.Adapter{a}, nil, nil, nil, WithDefaultLimit(7))
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q", DocType: "cct"})
	require.NoError(t, err)
	assert.Equal(t, int32(7), a.gotLim.Load())
	assert.Equal(t, models.DocTypeCollectiveAgreement, a.gotType.Load())
}

func TestDispatch_EmptyQuery(t *testing.T) {
	d, _ := New([]backend.Adapter{&fakeAdapter{name: "a", st: models.SourceTypePDF}}, nil, nil, nil)
	_, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "   "})
	assert.ErrorIs(t, err, models.ErrEmptyQuery)
}

func TestDispatch_UnknownDocType(t *testing.T) {
	a := &fakeAdapter{name: "a", st: models.SourceTypePDF}
	d, _ := New([]backend.Adapter{a}, nil, nil, nil)
	_, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q", DocType: "circulaire"})
	assert.ErrorIs(t, err, models.ErrUnknownDocType)
	assert.Zero(t, a.calls.Load())
}

func TestDispatch_DoesNotMutateAdapterResults(t *testing.T) {
	shared := []models.RawResult{raw("a", "LAW", 0.9), raw("b", "CCT", 0.5), raw("c", "", 0.1)}
	a := &fakeAdapter{name: "cache", st: models.SourceTypePDF, raws: shared}
	d, err := New([]backend.Adapter{a}, nil, nil, nil)
	require.NoError(t, err)

	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, ret.Documents, 2)
	for _, r := range shared {
		assert.Empty(t, r.SourceType, "adapter slice must not be stamped in place")
	}
	assert.Len(t, a.raws, 3)
}

func TestDispatch_FailedBackendIsIsolated(t *testing.T) {
	ok := &fakeAdapter{name: "rules", st: models.SourceTypeStructured, raws: []models.RawResult{raw("r", "CCT", 0)}}
	broken := &fakeAdapter{name: "web", st: models.SourceTypeWeb, err: errors.New("401 unauthorized")}
	d, _ := New([]backend.Adapter{broken, ok}, nil, nil, nil)

	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, ret.State)
	assert.Equal(t, []string{"r"}, titles(ret.Documents))
	assert.Equal(t, models.BranchSkipped, ret.Branches[0].State)
	assert.Contains(t, ret.Branches[0].Error, "401")
	assert.Equal(t, models.BranchSucceeded, ret.Branches[1].State)
	assert.NotContains(t, ret.Context, "Web results", "failed source gets no section")
}

func TestDispatch_TimeoutAndPanicAreSkipped(t *testing.T) {
	slow := &fakeAdapter{name: "slow", st: models.SourceTypeWeb, delay: time.Minute}
	bad := &fakeAdapter{name: "bad", st: models.SourceTypePDF, panics: true}
	ok := &fakeAdapter{name: "ok", st: models.SourceTypeStructured, raws: []models.RawResult{raw("r", "", 0.5)}}
	d, _ := New([]backend.Adapter{slow, bad, ok}, nil, nil, nil, WithBackendTimeout(50*time.Millisecond))

	start := time.Now()
	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, models.StateDone, ret.State)
	assert.Equal(t, models.BranchSkipped, ret.Branches[0].State)
	assert.Contains(t, ret.Branches[0].Error, context.DeadlineExceeded.Error())
	assert.Equal(t, models.BranchSkipped, ret.Branches[1].State)
	assert.Contains(t, ret.Branches[1].Error, "panicked")
	assert.Equal(t, []string{"r"}, titles(ret.Documents))
}

func TestDispatch_AllBackendsFail(t *testing.T) {
	outage := errors.New("connection refused")
	d, _ := New([]backend.Adapter{
		&fakeAdapter{name: "fulltext", st: models.SourceTypePDF, err: outage},
		&fakeAdapter{name: "rules", st: models.SourceTypeStructured, err: outage},
		&fakeAdapter{name: "web", st: models.SourceTypeWeb, err: outage},
	}, nil, nil, nil)

	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, ret.State)
	assert.Equal(t, NoSourcesMarker, ret.Context)
	assert.Empty(t, ret.Documents)
	for _, b := range ret.Branches {
		assert.Equal(t, models.BranchSkipped, b.State)
	}
}

func TestDispatch_NothingFound(t *testing.T) {
	d, _ := New([]backend.Adapter{&fakeAdapter{name: "a", st: models.SourceTypePDF}}, nil, nil, nil)
	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, ret.State)
	assert.Equal(t, assemble.NoDocumentsMarker, ret.Context)
}

func TestDispatch_MalformedRecordOmitted(t *testing.T) {
	a := &fakeAdapter{name: "a", st: models.SourceTypePDF, raws: []models.RawResult{
		raw("good", "Loi", 1),
		{ID: "bad", Derived: map[string]any{"extractive_answers": "not a list"}},
	}}
	d, _ := New([]backend.Adapter{a}, nil, nil, nil)
	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, titles(ret.Documents))
	assert.Equal(t, 2, ret.Branches[0].Count)
}

func TestDispatch_OrderIndependentOfCompletion(t *testing.T) {
	// Two same-priority, same-score results from backends finishing in
	// opposite order: configuration order must win.
	first := &fakeAdapter{name: "first", st: models.SourceTypePDF, delay: 40 * time.Millisecond,
		raws: []models.RawResult{raw("from-first", "Loi", 0.5)}}
	second := &fakeAdapter{name: "second", st: models.SourceTypeStructured,
		raws: []models.RawResult{raw("from-second", "Loi", 0.5)}}
	d, _ := New([]backend.Adapter{first, second}, nil, nil, nil)

	for i := 0; i < 3; i++ {
		ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, []string{"from-first", "from-second"}, titles(ret.Documents))
	}
}

func TestDispatch_LimitEnforcedOnAdapterOutput(t *testing.T) {
	a := &fakeAdapter{name: "a", st: models.SourceTypePDF, raws: []models.RawResult{
		raw("1", "", 0.9), raw("2", "", 0.8), raw("3", "", 0.7),
	}}
	d, _ := New([]backend.Adapter{a}, nil, nil, nil)
	ret, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, ret.Documents, 2)
	assert.Equal(t, 2, ret.Branches[0].Count)
}

func TestDispatch_ConcurrentFanOut(t *testing.T) {
	adapters := make([]backend.Adapter, 3)
	for i := range adapters {
		adapters[i] = &fakeAdapter{name: "a", st: models.SourceTypePDF, delay: 100 * time.Millisecond}
	}
	d, _ := New(adapters, nil, nil, nil)

	start := time.Now()
	_, err := d.Dispatch(context.Background(), models.RetrievalQuery{Query: "q"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "backends must run in parallel")
}

func TestDispatch_ParentCancellation(t *testing.T) {
	slow := &fakeAdapter{name: "slow", st: models.SourceTypePDF, delay: time.Minute}
	d, _ := New([]backend.Adapter{slow}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	ret, err := d.Dispatch(ctx, models.RetrievalQuery{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, ret.State)
}

func TestBackends(t *testing.T) {
	d, _ := New([]backend.Adapter{
		&fakeAdapter{name: "fulltext", st: models.SourceTypePDF},
		&fakeAdapter{name: "web", st: models.SourceTypeWeb},
	}, nil, nil, nil)
	assert.Equal(t, []string{"fulltext", "web"}, d.Backends())
}
