package regno

import "testing"

func TestParse(t *testing.T) {
	info, err := Parse("714023247046")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if info.AdmissionYear != 2023 {
		t.Errorf("expected admission year 2023, got %d", info.AdmissionYear)
	}
	if info.GraduationYear != 2027 {
		t.Errorf("expected graduation year 2027, got %d", info.GraduationYear)
	}
	if info.DeptCode != "247" {
		t.Errorf("expected dept code 247, got %q", info.DeptCode)
	}
}

func TestParseNinetiesYear(t *testing.T) {
	info, err := Parse("714095247046")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if info.AdmissionYear != 1995 {
		t.Errorf("expected admission year 1995, got %d", info.AdmissionYear)
	}
}

func TestParseRejectsShort(t *testing.T) {
	if _, err := Parse("71402"); err == nil {
		t.Fatal("expected error for short registration number")
	}
}

func TestParseRejectsNonDigits(t *testing.T) {
	if _, err := Parse("71402324704X"); err == nil {
		t.Fatal("expected error for non-digit characters")
	}
}

func TestYearDisplay(t *testing.T) {
	display, err := YearDisplay("714023247046")
	if err != nil {
		t.Fatalf("YearDisplay failed: %v", err)
	}
	if display != "2023 - 2027" {
		t.Errorf("expected %q, got %q", "2023 - 2027", display)
	}
}
