package support

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/dxedge"
	"github.com/MeKo-Tech/filmdx/internal/synth"
	"github.com/MeKo-Tech/filmdx/internal/testutil"
	"github.com/MeKo-Tech/filmdx/internal/utils"
	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// renderImage writes a strip of the comma separated codes to name inside
// the scenario temp directory.
func (testCtx *TestContext) renderImage(name, codes string, opts synth.Options) (string, error) {
	var parsed []dxedge.Code
	for _, s := range strings.Split(codes, ",") {
		c, err := dxedge.ParseText(strings.TrimSpace(s))
		if err != nil {
			return "", err
		}
		parsed = append(parsed, c)
	}
	img, err := synth.RenderStrip(parsed, opts)
	if err != nil {
		return "", err
	}
	path := filepath.Join(testCtx.TempDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, utils.SaveImage(path, img)
}

func (testCtx *TestContext) aDXEdgeImageShowing(name, codes string) error {
	_, err := testCtx.renderImage(name, codes, synth.DefaultOptions())
	return err
}

func (testCtx *TestContext) aNegativeDXEdgeImageShowing(name, codes string) error {
	opts := synth.DefaultOptions()
	opts.Negative = true
	_, err := testCtx.renderImage(name, codes, opts)
	return err
}

func (testCtx *TestContext) anImageWithoutCodes(name string) error {
	img := testutil.CreateTestImage(200, 80, color.White)
	return utils.SaveImage(filepath.Join(testCtx.TempDir, name), img)
}

func (testCtx *TestContext) aTextFile(name string) error {
	return os.WriteFile(filepath.Join(testCtx.TempDir, name), []byte("not an image"), 0o600)
}

// aPDFWithPages renders one page per image, each showing the codes of one
// row of the table.
func (testCtx *TestContext) aPDFWithPages(name string, table *godog.Table) error {
	var images []string
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		path, err := testCtx.renderImage(fmt.Sprintf("page-%d.png", i), row.Cells[0].Value, synth.DefaultOptions())
		if err != nil {
			return err
		}
		images = append(images, path)
	}
	if len(images) == 0 {
		return fmt.Errorf("no pages given for %s", name)
	}
	return api.ImportImagesFile(images, filepath.Join(testCtx.TempDir, name), nil, nil)
}

// RegisterImageSteps registers the fixture steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a DX edge image "([^"]*)" showing "([^"]*)"$`, testCtx.aDXEdgeImageShowing)
	sc.Step(`^a negative DX edge image "([^"]*)" showing "([^"]*)"$`, testCtx.aNegativeDXEdgeImageShowing)
	sc.Step(`^an image "([^"]*)" without codes$`, testCtx.anImageWithoutCodes)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^a PDF "([^"]*)" with pages:$`, testCtx.aPDFWithPages)
}
