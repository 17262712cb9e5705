package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/wikimill/pkg/persist"
)

// logsDirName is the run-report directory created under the output directory.
const logsDirName = "logs"

// reportBasename is the report filename without extension.
const reportBasename = "report"

// logsDirPerm is the permission for the created logs directory.
const logsDirPerm = 0o750

// SkipCounts breaks down articles skipped before conversion.
type SkipCounts struct {
	Namespace int64 `yaml:"namespace"`
	Redirect  int64 `yaml:"redirect"`
	Empty     int64 `yaml:"empty"`
}

// Total sums all skip reasons.
func (s SkipCounts) Total() int64 {
	return s.Namespace + s.Redirect + s.Empty
}

// Failure records one article whose output write failed.
type Failure struct {
	Title string `yaml:"title"`
	Kind  string `yaml:"kind"`
}

// Report summarizes one conversion run. It is written to the logs directory
// on every exit path, success or not.
type Report struct {
	DumpPath  string `yaml:"dump_path"`
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"`

	ResumedFromOffset int64 `yaml:"resumed_from_offset"`
	FinalOffset       int64 `yaml:"final_offset"`

	ArticlesConverted int64      `yaml:"articles_converted"`
	ArticlesFailed    int64      `yaml:"articles_failed"`
	Skipped           SkipCounts `yaml:"skipped"`
	BatchesFlushed    int64      `yaml:"batches_flushed"`
	BytesWritten      int64      `yaml:"bytes_written"`

	// Interrupted is true when a signal stopped the run before end of dump.
	Interrupted bool `yaml:"interrupted"`

	Failures []Failure `yaml:"failures,omitempty"`

	StartedAt  string `yaml:"started_at"`
	FinishedAt string `yaml:"finished_at"`
	Duration   string `yaml:"duration"`
}

// ReportPath returns where SaveReport stores the run report.
func ReportPath(outputDir string) string {
	return filepath.Join(outputDir, logsDirName, reportBasename+".yaml")
}

// SaveReport writes the run report under <output>/logs, atomically.
func SaveReport(outputDir string, report *Report) error {
	dir := filepath.Join(outputDir, logsDirName)

	err := os.MkdirAll(dir, logsDirPerm)
	if err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	persister := persist.NewPersister[Report](reportBasename, persist.NewYAMLCodec())

	return persister.Save(dir, func() *Report {
		return report
	})
}

// LoadReport reads a previously saved run report.
func LoadReport(outputDir string) (*Report, error) {
	persister := persist.NewPersister[Report](reportBasename, persist.NewYAMLCodec())

	var report *Report

	err := persister.Load(filepath.Join(outputDir, logsDirName), func(r *Report) {
		report = r
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
