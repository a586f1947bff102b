package dicomgw

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	healthuc "github.com/kailas-cloud/dicomgw/internal/usecase/health"
)

// --- queryUseCase mock ---

type mockQueryUC struct {
	findFn func(ctx context.Context, level domain.Level, params url.Values, defaults []string) ([]domain.Record, error)
}

func (m *mockQueryUC) Find(
	ctx context.Context, level domain.Level, params url.Values, defaults []string,
) ([]domain.Record, error) {
	return m.findFn(ctx, level, params, defaults)
}

// --- metadataUseCase mock ---

type mockMetadataUC struct {
	fn func(ctx context.Context, study, series string) ([]domain.Record, error)
}

func (m *mockMetadataUC) SeriesMetadata(
	ctx context.Context, study, series string, _ url.Values,
) ([]domain.Record, error) {
	return m.fn(ctx, study, series)
}

// --- objectUseCase mock ---

type mockObjectUC struct {
	frameFn    func(ctx context.Context, ref domain.ObjectRef) ([]byte, error)
	instanceFn func(ctx context.Context, ref domain.ObjectRef) ([]byte, error)
}

func (m *mockObjectUC) Frame(ctx context.Context, ref domain.ObjectRef) ([]byte, error) {
	return m.frameFn(ctx, ref)
}

func (m *mockObjectUC) Instance(ctx context.Context, ref domain.ObjectRef) ([]byte, error) {
	return m.instanceFn(ctx, ref)
}

// --- availabilityUseCase / sweepUseCase mocks ---

type mockAvailability struct {
	calls []string
	err   error
}

func (m *mockAvailability) EnsureAvailable(_ context.Context, study, series string) error {
	m.calls = append(m.calls, study+"/"+series)
	return m.err
}

// mockCache reports the listed paths as present.
type mockCache struct {
	present map[string]bool
}

func (m *mockCache) ObjectPath(study, sop string) string { return study + "/" + sop + ".dcm" }

func (m *mockCache) Exists(path string) bool { return m.present[path] }

type mockSweeper struct {
	evicted int
	err     error
}

func (m *mockSweeper) Sweep(context.Context, string) (int, error) { return m.evicted, m.err }

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }
