package texture

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrDuplicateOutput is returned when two jobs would write the same file.
var ErrDuplicateOutput = errors.New("duplicate output path")

// Job is one unit of compression work: a single input encoded in one format.
type Job struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Format     Format `json:"format"`
}

// Layout decides where compressed files land.
type Layout struct {
	InputRoot  string
	OutputRoot string
	Formats    []Format
}

// InPlace reports whether outputs are written next to their sources.
func (l Layout) InPlace() bool {
	in, err := filepath.Abs(l.InputRoot)
	if err != nil {
		return false
	}
	out, err := filepath.Abs(l.OutputRoot)
	if err != nil {
		return false
	}
	return filepath.Clean(in) == filepath.Clean(out)
}

// OutputPath returns the output location for input encoded as format.
func (l Layout) OutputPath(input string, format Format) (string, error) {
	absRoot, err := filepath.Abs(l.InputRoot)
	if err != nil {
		return "", err
	}
	absInput, err := filepath.Abs(input)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absRoot, absInput)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside input directory %s", input, absRoot)
	}

	ext := format.Extension
	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	multi := len(l.Formats) > 1

	if l.InPlace() {
		name := stem + ext
		if multi {
			name = stem + "_" + format.Name + ext
		}
		return filepath.Join(filepath.Dir(absInput), name), nil
	}

	absOut, err := filepath.Abs(l.OutputRoot)
	if err != nil {
		return "", err
	}
	if multi {
		absOut = filepath.Join(absOut, format.Name)
	}
	return filepath.Join(absOut, filepath.Dir(rel), stem+ext), nil
}

// BuildJobs creates one job per file and format, file-major in input order.
func BuildJobs(files []string, layout Layout) ([]Job, error) {
	jobs := make([]Job, 0, len(files)*len(layout.Formats))
	owners := make(map[string]string, cap(jobs))

	for _, file := range files {
		for _, format := range layout.Formats {
			out, err := layout.OutputPath(file, format)
			if err != nil {
				return nil, err
			}
			if prev, ok := owners[out]; ok {
				return nil, fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateOutput, prev, file, out)
			}
			owners[out] = file
			jobs = append(jobs, Job{InputPath: file, OutputPath: out, Format: format})
		}
	}

	return jobs, nil
}
