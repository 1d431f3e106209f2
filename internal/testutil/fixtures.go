package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFixture describes a rendered image and the codes a scan has to find.
type TestFixture struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	InputFile   string   `json:"input_file"`
	Codes       []string `json:"codes"`
	// Negative images need the scanner's invert pass.
	Negative bool `json:"negative,omitempty"`
}

// SampleFixtures returns the standard set of rendered test images.
func SampleFixtures() []TestFixture {
	return []TestFixture{
		{
			Name:        "short_115_10",
			Description: "Single code without half-frame number",
			InputFile:   ImageName("short_115_10"),
			Codes:       []string{"115-10"},
		},
		{
			Name:        "halfframe_115_10_11A",
			Description: "Single code with half-frame number and letter",
			InputFile:   ImageName("halfframe_115_10_11A"),
			Codes:       []string{"115-10/11A"},
		},
		{
			Name:        "strip_two_codes",
			Description: "Two codes next to each other on one strip",
			InputFile:   ImageName("strip_two_codes"),
			Codes:       []string{"18-3/5", "32-5"},
		},
		{
			Name:        "negative_80_2",
			Description: "Inverted code as seen on a negative",
			InputFile:   ImageName("negative_80_2"),
			Codes:       []string{"80-2"},
			Negative:    true,
		},
	}
}

// LoadFixture loads a test fixture from dir/name.json.
func LoadFixture(t *testing.T, dir, name string) TestFixture {
	t.Helper()

	fixturePath := filepath.Join(dir, name+".json")

	data, err := os.ReadFile(fixturePath) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err, "Failed to read fixture file: %s", fixturePath)

	var fixture TestFixture
	err = json.Unmarshal(data, &fixture)
	require.NoError(t, err, "Failed to unmarshal fixture JSON")

	return fixture
}

// SaveFixture saves a test fixture to dir/<name>.json.
func SaveFixture(t *testing.T, dir string, fixture TestFixture) {
	t.Helper()

	require.NoError(t, EnsureDir(dir))

	fixturePath := filepath.Join(dir, fixture.Name+".json")

	data, err := json.MarshalIndent(fixture, "", "  ")
	require.NoError(t, err, "Failed to marshal fixture to JSON")

	err = os.WriteFile(fixturePath, data, 0o600)
	require.NoError(t, err, "Failed to write fixture file: %s", fixturePath)
}

// CreateSampleFixtures writes the sample images and their fixture files
// into dir.
func CreateSampleFixtures(t *testing.T, dir string) {
	t.Helper()

	GenerateTestImages(t, dir)
	for _, f := range SampleFixtures() {
		SaveFixture(t, dir, f)
	}
}

// ValidateFixture validates that a fixture's input file exists.
func ValidateFixture(t *testing.T, dir string, fixture TestFixture) {
	t.Helper()

	inputPath := filepath.Join(dir, fixture.InputFile)
	require.True(t, FileExists(inputPath), "Fixture input file does not exist: %s", inputPath)
}
