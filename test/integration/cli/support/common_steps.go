package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// iRunCommand executes a command and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // G204: commands come from feature files
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nStdout: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies stdout contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// outputJSON decodes stdout as a JSON object.
func (testCtx *TestContext) outputJSON() (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastOutput)), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return data, nil
}

// theOutputShouldBeValidJSON verifies stdout is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.outputJSON()
	return err
}

// theJSONShouldContain verifies the JSON output has a (dotted) field.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	return checkFieldExists(data, field)
}

// theJSONFieldShouldEqual compares a numeric or string field.
func (testCtx *TestContext) theJSONFieldShouldEqual(field, expected string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	return checkFieldEquals(data, field, expected)
}

// theJSONArrayShouldHaveEntries checks the length of an array field.
func (testCtx *TestContext) theJSONArrayShouldHaveEntries(field string, n int) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	return checkArrayLength(data, field, n)
}

func lookupField(data map[string]interface{}, field string) (interface{}, error) {
	parts := strings.Split(field, ".")
	var current interface{} = data
	for i, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot navigate deeper into non-object field '%s'", strings.Join(parts[:i], "."))
		}
		val, exists := obj[part]
		if !exists {
			return nil, fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
		}
		current = val
	}
	return current, nil
}

func checkFieldExists(data map[string]interface{}, field string) error {
	_, err := lookupField(data, field)
	return err
}

func checkFieldEquals(data map[string]interface{}, field, expected string) error {
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(val); got != expected {
		return fmt.Errorf("field '%s' is %s, want %s", field, got, expected)
	}
	return nil
}

func checkArrayLength(data map[string]interface{}, field string, n int) error {
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	arr, ok := val.([]interface{})
	if !ok {
		return fmt.Errorf("field '%s' is not an array", field)
	}
	if len(arr) != n {
		return fmt.Errorf("field '%s' has %d entries, want %d", field, len(arr), n)
	}
	return nil
}

// theOutputShouldBeValidCSVWithRows verifies stdout parses as CSV with the
// given number of data rows.
func (testCtx *TestContext) theOutputShouldBeValidCSVWithRows(n int) error {
	rows, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(rows)-1 != n {
		return fmt.Errorf("CSV has %d data rows, want %d", len(rows)-1, n)
	}
	return nil
}

// theErrorShouldMention verifies the failure output contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	full := testCtx.LastOutput + " " + testCtx.LastStderr
	if testCtx.LastError != nil {
		full += " " + testCtx.LastError.Error()
	}
	if !strings.Contains(strings.ToLower(full), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, full)
	}
	return nil
}

// theFileShouldExist checks a (placeholder-substituted) path.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path := testCtx.substituteCommandVariables(filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

// theFileShouldContain checks a file's content.
func (testCtx *TestContext) theFileShouldContain(filename, expected string) error {
	path := testCtx.substituteCommandVariables(filename)
	data, err := os.ReadFile(path) //nolint:gosec // G304: test artifact path
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'", path, expected)
	}
	return nil
}

// theEnvironmentVariableIsSetTo sets an environment variable for later commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldEqual)
	sc.Step(`^the JSON array "([^"]*)" should have (\d+) entries$`, testCtx.theJSONArrayShouldHaveEntries)
	sc.Step(`^the output should be valid CSV with (\d+) rows$`, testCtx.theOutputShouldBeValidCSVWithRows)

	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
