package config

import "testing"

func TestGetQualityDefaults(t *testing.T) {
	cfg := GetQuality()
	if cfg.SampleCount != 50 {
		t.Errorf("default sample count = %d, want 50", cfg.SampleCount)
	}
	if cfg.MinBlurScore != 50 {
		t.Errorf("default min blur = %f, want 50", cfg.MinBlurScore)
	}
	if cfg.DetectorConf != 0.65 {
		t.Errorf("default detector confidence = %f, want 0.65", cfg.DetectorConf)
	}
	if !cfg.PoseCheck {
		t.Error("pose check should default to on")
	}
	if cfg.DumpFailedFrames {
		t.Error("failed-frame dumps should default to off")
	}
}

func TestGetQualityEnvOverrides(t *testing.T) {
	t.Setenv("QUALITY_SAMPLE_COUNT", "15")
	t.Setenv("QUALITY_MIN_BLUR", "15")
	t.Setenv("QUALITY_POSE_CHECK", "false")

	cfg := GetQuality()
	if cfg.SampleCount != 15 {
		t.Errorf("sample count override = %d, want 15", cfg.SampleCount)
	}
	if cfg.MinBlurScore != 15 {
		t.Errorf("min blur override = %f, want 15", cfg.MinBlurScore)
	}
	if cfg.PoseCheck {
		t.Error("pose check override not applied")
	}
}
