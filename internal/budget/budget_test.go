package budget

import "testing"

func TestFirstSampleSetsEMADirectly(t *testing.T) {
	tr := New()
	tr.Record(2.0)
	if tr.EMA() != 2.0 {
		t.Errorf("expected EMA 2.0 after first sample, got %f", tr.EMA())
	}
}

func TestEMABlendsSubsequentSamples(t *testing.T) {
	tr := New()
	tr.Record(1.0)
	tr.Record(1.0)
	tr.Record(1.0)
	tr.Record(5.0) // 5 > 3*ema(1.0) with 3 prior samples >= 3, so dampened to 2*1=2.
	got := tr.EMA()
	want := alpha*2.0 + (1-alpha)*1.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected dampened EMA %f, got %f", want, got)
	}
}

func TestOutlierNotDampenedBeforeMinSamples(t *testing.T) {
	tr := New()
	tr.Record(1.0)
	tr.Record(10.0) // only 1 prior sample, below minSamplesForDampening
	want := alpha*10.0 + (1-alpha)*1.0
	if got := tr.EMA(); got != want {
		t.Errorf("expected undampened blend %f, got %f", want, got)
	}
}

func TestProjectedTotalMonotonicAcrossEpochs(t *testing.T) {
	tr := New()
	tr.Record(1.0)
	first := tr.ProjectedTotal(10)
	tr.Record(1.0)
	second := tr.ProjectedTotal(9)
	if second < first-1e-9 {
		t.Errorf("expected projected total to stay non-decreasing, got %f then %f", first, second)
	}
}

func TestShouldSlowDown(t *testing.T) {
	tr := New()
	tr.Record(10.0)
	if !tr.ShouldSlowDown(5, 20.0) {
		t.Error("expected slow-down recommendation when projection exceeds budget")
	}
	if tr.ShouldSlowDown(1, 1000.0) {
		t.Error("did not expect slow-down recommendation with ample budget")
	}
}

func TestShouldSlowDownNoLimit(t *testing.T) {
	tr := New()
	tr.Record(1000.0)
	if tr.ShouldSlowDown(100, 0) {
		t.Error("a zero/negative budget means no limit is enforced")
	}
}
