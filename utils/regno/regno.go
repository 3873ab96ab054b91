// Package regno parses college registration numbers.
//
// A registration number like 714023247046 encodes the admission year in
// positions 4-5 (23 -> 2023) and the department code in positions 6-8
// (247). Graduation year is admission year + 4.
package regno

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidRegNo = errors.New("invalid registration number format")

// Info holds the fields decoded from a registration number.
type Info struct {
	RegNo          string
	AdmissionYear  int
	GraduationYear int
	DeptCode       string
}

// Parse decodes a registration number. The number must be at least 9
// decimal digits; anything else is a hard error.
func Parse(regNo string) (Info, error) {
	if len(regNo) < 9 {
		return Info{}, fmt.Errorf("%w: %q is shorter than 9 characters", ErrInvalidRegNo, regNo)
	}
	for _, r := range regNo {
		if r < '0' || r > '9' {
			return Info{}, fmt.Errorf("%w: %q contains non-digit characters", ErrInvalidRegNo, regNo)
		}
	}

	yearPart, err := strconv.Atoi(regNo[4:6])
	if err != nil {
		return Info{}, fmt.Errorf("%w: bad year field in %q", ErrInvalidRegNo, regNo)
	}

	// Two-digit admission year: 90-99 are 1990s, everything else 20xx.
	admission := 2000 + yearPart
	if yearPart >= 90 {
		admission = 1900 + yearPart
	}

	return Info{
		RegNo:          regNo,
		AdmissionYear:  admission,
		GraduationYear: admission + 4,
		DeptCode:       regNo[6:9],
	}, nil
}

// GraduationYear returns the four-digit graduation year as a string.
func GraduationYear(regNo string) (string, error) {
	info, err := Parse(regNo)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(info.GraduationYear), nil
}

// DeptCode returns the three-character department code.
func DeptCode(regNo string) (string, error) {
	info, err := Parse(regNo)
	if err != nil {
		return "", err
	}
	return info.DeptCode, nil
}

// YearDisplay formats the admission and graduation years the way the
// collection UI shows them, e.g. "2023 - 2027".
func YearDisplay(regNo string) (string, error) {
	info, err := Parse(regNo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d - %d", info.AdmissionYear, info.GraduationYear), nil
}
