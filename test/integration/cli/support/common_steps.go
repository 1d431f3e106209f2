package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// iRunCommand runs a shell-free command line from the project root.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(start)

	testCtx.LastExitCode = 0
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	expected = testCtx.substitute(expected)
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output contains '%s'\nActual output: %s", unexpected, testCtx.LastOutput)
	}
	return nil
}

// jsonPart drops the log lines, which are JSON objects starting with a
// "time" key, and returns the document that remains.
func jsonPart(output string) (string, error) {
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, `{"time":`) {
			kept = append(kept, line)
		}
	}
	output = strings.TrimSpace(strings.Join(kept, "\n"))
	start := strings.IndexAny(output, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON found in output: %s", output)
	}
	return output[start:], nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	part, err := jsonPart(testCtx.LastOutput)
	if err != nil {
		return err
	}
	var js json.RawMessage
	if err := json.Unmarshal([]byte(part), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nJSON part: %s", err, part)
	}
	return nil
}

// theJSONShouldContain checks a dotted field path such as "codes.0.text".
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	part, err := jsonPart(testCtx.LastOutput)
	if err != nil {
		return err
	}
	return checkJSONField(part, field)
}

func checkJSONField(doc, field string) error {
	var current any
	if err := json.Unmarshal([]byte(doc), &current); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	parts := strings.Split(field, ".")
	for i, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
			}
			current = next
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(v) {
				return fmt.Errorf("no element '%s' in array", strings.Join(parts[:i+1], "."))
			}
			current = v[idx]
		default:
			return fmt.Errorf("cannot navigate into '%s'", strings.Join(parts[:i], "."))
		}
	}
	return nil
}

// theErrorShouldMention matches case-insensitively against the output.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", text)
	}
	if !strings.Contains(strings.ToLower(testCtx.LastOutput), strings.ToLower(text)) {
		return fmt.Errorf("error does not contain '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(filename string) error {
	filename = testCtx.substitute(filename)
	if _, err := os.Stat(filename); err != nil {
		return fmt.Errorf("file %s does not exist: %w", filename, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(filename, expected string) error {
	filename = testCtx.substitute(filename)
	b, err := os.ReadFile(filename) //nolint:gosec // G304: path from the feature file
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if !strings.Contains(string(b), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", filename, expected, string(b))
	}
	return nil
}

func (testCtx *TestContext) theDirectoryShouldContainFiles(dir string, n int) error {
	dir = testCtx.substitute(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != n {
		return fmt.Errorf("directory %s holds %d files, want %d", dir, len(entries), n)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substitute(value))
	return nil
}

// RegisterCommonSteps registers the command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) files?$`, testCtx.theDirectoryShouldContainFiles)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
