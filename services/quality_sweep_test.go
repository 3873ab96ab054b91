package services

import (
	"testing"

	"github.com/sahilchouksey/face-gallery-api/model"
)

func TestSweepGuardRejectsSecondRun(t *testing.T) {
	sweep := NewQualitySweep(nil, nil, nil)
	batch := model.Batch{DeptCode: "104", Year: "2025"}

	if !sweep.tryAcquire(batch) {
		t.Fatal("first acquire should succeed")
	}
	if !sweep.Running(batch) {
		t.Error("batch should be reported as running")
	}
	if sweep.tryAcquire(batch) {
		t.Error("second acquire for the same batch should fail")
	}

	// A different batch is independent.
	other := model.Batch{DeptCode: "247", Year: "2025"}
	if !sweep.tryAcquire(other) {
		t.Error("acquire for a different batch should succeed")
	}
	sweep.release(other)

	sweep.release(batch)
	if sweep.Running(batch) {
		t.Error("batch should no longer be running after release")
	}
	if !sweep.tryAcquire(batch) {
		t.Error("acquire after release should succeed")
	}
}

func TestCategoryToStatus(t *testing.T) {
	cases := map[string]model.QualityStatus{
		model.QualityPass:       model.QualityStatusPass,
		model.QualityBorderline: model.QualityStatusBorderline,
		model.QualityFail:       model.QualityStatusFail,
		"":                      model.QualityStatusFail,
	}
	for category, want := range cases {
		if got := categoryToStatus(category); got != want {
			t.Errorf("categoryToStatus(%q) = %q, want %q", category, got, want)
		}
	}
}
